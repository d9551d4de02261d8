package settings

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Doc renders the settings reference as a markdown table, driven by the
// struct tags on Settings.
func Doc() string {
	var b strings.Builder

	fmt.Fprintf(&b, "`%s`\n", FileName)
	b.WriteString("| Key | Type | Default | Description |\n")
	b.WriteString("| --- | ---- | ------- | ----------- |\n")

	typ := reflect.TypeOf(Settings{})
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		name := field.Tag.Get("koanf")
		if name == "" || name == "-" {
			continue
		}

		fmt.Fprintf(&b, "|%s|%s|%s|%s|\n",
			name, field.Type, field.Tag.Get("default"), field.Tag.Get("desc"))
	}

	return b.String()
}

// Template returns a sample settings.json with the shipped defaults and a
// placeholder key.
func Template() string {
	sample := Defaults()
	sample.APIKey = "YOUR_API_KEY"

	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "{}"
	}

	return string(data) + "\n"
}
