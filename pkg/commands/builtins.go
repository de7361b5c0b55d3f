package commands

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wehubfusion/Daedalus/pkg/module"
)

// DictionaryService is the service name the dictionary lookup command depends on.
const DictionaryService = "dictionary"

func builtins() []*Descriptor {
	return []*Descriptor{
		{
			Name:        "strings.TitleCase",
			Description: "Capitalizes the first letter of each word using Unicode-aware rules",
			Items: []module.Item{
				in("text", module.TypeString, true, nil),
				out("result", module.TypeString),
			},
			New: stateless(func(_ context.Context, inputs map[string]any) (map[string]any, error) {
				text, _ := inputs["text"].(string)
				return map[string]any{"result": cases.Title(language.Und).String(text)}, nil
			}),
		},
		{
			Name:        "strings.Trim",
			Description: "Removes the cutset, or whitespace when no cutset is given, from both ends",
			Items: []module.Item{
				in("text", module.TypeString, true, nil),
				in("cutset", module.TypeString, false, ""),
				out("result", module.TypeString),
			},
			New: stateless(func(_ context.Context, inputs map[string]any) (map[string]any, error) {
				text, _ := inputs["text"].(string)
				cutset, _ := inputs["cutset"].(string)
				if cutset == "" {
					return map[string]any{"result": strings.TrimSpace(text)}, nil
				}
				return map[string]any{"result": strings.Trim(text, cutset)}, nil
			}),
		},
		{
			Name:        "math.Scale",
			Description: "Multiplies a value by a factor",
			Items: []module.Item{
				in("value", module.TypeDouble, true, nil),
				in("factor", module.TypeDouble, false, 1.0),
				out("scaled", module.TypeDouble),
			},
			New: stateless(func(_ context.Context, inputs map[string]any) (map[string]any, error) {
				value, ok := inputs["value"].(float64)
				if !ok {
					return nil, fmt.Errorf("value must be a double, got %T", inputs["value"])
				}
				factor := 1.0
				if f, ok := inputs["factor"].(float64); ok {
					factor = f
				}
				return map[string]any{"scaled": value * factor}, nil
			}),
		},
		{
			Name:        "lookup.Dictionary",
			Description: "Looks up a key in the injected dictionary service",
			Items: []module.Item{
				in("key", module.TypeString, true, nil),
				out("value", module.TypeString),
				out("found", module.TypeBoolean),
			},
			New: newDictionaryLookup,
		},
	}
}

func newDictionaryLookup(inj Injector) (Command, error) {
	if inj == nil {
		return nil, fmt.Errorf("service %q is not available", DictionaryService)
	}
	svc, ok := inj.Service(DictionaryService)
	if !ok {
		return nil, fmt.Errorf("service %q is not available", DictionaryService)
	}
	dict, ok := svc.(map[string]string)
	if !ok {
		return nil, fmt.Errorf("service %q has type %T, want map[string]string", DictionaryService, svc)
	}
	return Func(func(_ context.Context, inputs map[string]any) (map[string]any, error) {
		key, _ := inputs["key"].(string)
		v, found := dict[key]
		if !found {
			return map[string]any{"value": nil, "found": false}, nil
		}
		return map[string]any{"value": v, "found": true}, nil
	}), nil
}
