// Copyright 2023 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/abcxyz/cmdkit/definition"
)

func commandHelp(d *definition.Definition, path string, set *FlagSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Usage: %s%s [options]\n\n", path, positionalUsage(d))
	if d.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", wrapAtLengthWithPadding(d.Description, 0))
	}
	if d.Experimental {
		fmt.Fprint(&b, "This command is experimental.\n\n")
	}

	if len(d.Positionals) > 0 {
		fmt.Fprint(&b, "POSITIONAL ARGUMENTS\n\n")
		for _, p := range d.Positionals {
			fmt.Fprintf(&b, "  %s (%s)\n", p.Name, p.Type)
			fmt.Fprint(&b, wrapAtLengthWithPadding(p.Description, 6))
			fmt.Fprint(&b, "\n\n")
		}
	}

	if flags := set.Help(); flags != "" {
		fmt.Fprintf(&b, "%s\n\n", flags)
	}

	if ex := examplesText(d, path); ex != "" {
		fmt.Fprintf(&b, "EXAMPLES\n\n%s", ex)
	}

	return strings.TrimRight(b.String(), "\n")
}

func positionalUsage(d *definition.Definition) string {
	var b strings.Builder
	for _, p := range d.Positionals {
		if p.Required {
			fmt.Fprintf(&b, " <%s>", p.Name)
		} else {
			fmt.Fprintf(&b, " [%s]", p.Name)
		}
	}
	return b.String()
}

func examplesText(d *definition.Definition, path string) string {
	var b strings.Builder
	for _, ex := range d.Examples {
		fmt.Fprintf(&b, "  - %s:\n\n", strings.TrimSuffix(ex.Description, ":"))
		fmt.Fprintf(&b, "      $ %s %s\n\n", path, ex.Options)
	}
	return b.String()
}

// groupExamples lists the examples of every command below d.
func groupExamples(d *definition.Definition, path string) string {
	var b strings.Builder
	_ = definition.Walk(d, func(node *definition.Definition, ancestors []*definition.Definition) error {
		if node == d || len(node.Examples) == 0 {
			return nil
		}
		parts := []string{path}
		for _, a := range ancestors[1:] {
			parts = append(parts, a.Name)
		}
		parts = append(parts, node.Name)
		full := strings.Join(parts, " ")

		fmt.Fprintf(&b, "%s\n\n", strings.ToUpper(full))
		b.WriteString(examplesText(node, full))
		return nil
	})

	if b.Len() == 0 {
		return "No examples found."
	}
	return strings.TrimRight(b.String(), "\n")
}

type webOption struct {
	Names       string
	Type        string
	Description string
}

type webSection struct {
	Name    string
	Options []webOption
}

type webChild struct {
	Name    string
	Summary string
}

type webPage struct {
	Path         string
	Description  string
	Experimental bool
	Usage        string
	Positionals  []definition.Positional
	Sections     []webSection
	Children     []webChild
	Examples     []definition.Example
}

var webHelpTmpl = template.Must(template.New("help").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Path}}</title>
  </head>

  <body>
    <h1>{{.Path}}</h1>
    {{if .Experimental}}<p><em>Experimental</em></p>{{end}}
    <p>{{.Description}}</p>
    <pre>{{.Usage}}</pre>

    {{if .Children}}
    <h2>Commands</h2>
    <dl>
      {{range .Children}}<dt>{{.Name}}</dt><dd>{{.Summary}}</dd>
      {{end}}
    </dl>
    {{end}}

    {{if .Positionals}}
    <h2>Positional arguments</h2>
    <dl>
      {{range .Positionals}}<dt>{{.Name}} ({{.Type}})</dt><dd>{{.Description}}</dd>
      {{end}}
    </dl>
    {{end}}

    {{range .Sections}}
    <h2>{{.Name}}</h2>
    <dl>
      {{range .Options}}<dt><code>{{.Names}}</code> ({{.Type}})</dt><dd>{{.Description}}</dd>
      {{end}}
    </dl>
    {{end}}

    {{if .Examples}}
    <h2>Examples</h2>
    <ul>
      {{range .Examples}}<li>{{.Description}}<pre>$ {{$.Path}} {{.Options}}</pre></li>
      {{end}}
    </ul>
    {{end}}
  </body>
</html>
`))

// webHelp renders the HTML help page of d.
func webHelp(d *definition.Definition, path string) (string, error) {
	page := &webPage{
		Path:         path,
		Description:  d.Description,
		Experimental: d.Experimental,
		Positionals:  d.Positionals,
		Examples:     d.Examples,
	}
	if d.IsGroup() {
		page.Usage = path + " COMMAND"
	} else {
		page.Usage = path + positionalUsage(d) + " [options]"
	}

	for _, c := range d.Children {
		page.Children = append(page.Children, webChild{Name: c.Name, Summary: summary(c)})
	}

	index := make(map[string]int)
	for _, o := range d.Options {
		if o.Hidden {
			continue
		}
		i, ok := index[o.Group]
		if !ok {
			i = len(page.Sections)
			index[o.Group] = i
			page.Sections = append(page.Sections, webSection{Name: o.Group})
		}

		names := []string{dashed(o.Name)}
		for _, a := range o.Aliases {
			names = append(names, dashed(a))
		}
		page.Sections[i].Options = append(page.Sections[i].Options, webOption{
			Names:       strings.Join(names, " | "),
			Type:        string(o.Type),
			Description: o.Description,
		})
	}

	var b strings.Builder
	if err := webHelpTmpl.Execute(&b, page); err != nil {
		return "", fmt.Errorf("failed to render help: %w", err)
	}
	return b.String(), nil
}
