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

package cli_test

import (
	"context"
	"fmt"
	"os"

	"github.com/abcxyz/cmdkit/cli"
	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/handler"
)

func ExampleBuild() {
	ctx := context.Background()

	raw := &definition.Definition{
		Name:        "fruitctl",
		Type:        definition.TypeGroup,
		Description: "Manage fruit.",
		Children: []*definition.Definition{
			{
				Name:        "peel",
				Type:        definition.TypeCommand,
				Description: "Peel a fruit.",
				Handler:     "peel",
				Positionals: []definition.Positional{
					{Name: "fruit", Type: definition.OptionString, Description: "The fruit to peel.", Required: true},
				},
				Options: []definition.Option{
					{Name: "times", Type: definition.OptionNumber, Description: "How many times.", DefaultValue: 1},
				},
			},
		},
	}

	def, err := definition.Prepare(ctx, raw, nil)
	if err != nil {
		panic(err)
	}

	handlers := handler.NewRegistry[cli.Handler]()
	handlers.MustRegister("peel", func(ctx context.Context, p *cli.Params) error {
		fmt.Fprintf(p.Stdout, "peeling %s %v time(s)\n", p.String("fruit"), p.Arguments["times"])
		return nil
	})

	cmd, err := cli.Build(def, &cli.BuildOptions{Handlers: handlers})
	if err != nil {
		panic(err)
	}
	cmd.SetStdout(os.Stdout)

	if err := cmd.Run(ctx, []string{"peel", "banana"}); err != nil {
		panic(err)
	}
	if err := cmd.Run(ctx, []string{"peel", "--times", "2", "orange"}); err != nil {
		panic(err)
	}

	// Output:
	// peeling banana 1 time(s)
	// peeling orange 2 time(s)
}
