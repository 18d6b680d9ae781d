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

// Package cli runs command trees. A tree is either written by hand from
// [RootCommand] and commands embedding [BaseCommand], or built from a prepared
// definition with [Build]:
//
//	def, err := definition.Prepare(ctx, raw, baseType)
//	if err != nil {
//	  return err
//	}
//
//	handlers := handler.NewRegistry[cli.Handler]()
//	handlers.MustRegister("eat", func(ctx context.Context, p *cli.Params) error {
//	  fmt.Fprintf(p.Stdout, "eating %s\n", p.Arguments["fruit"])
//	  return nil
//	})
//
//	cmd, err := cli.Build(def, &cli.BuildOptions{Handlers: handlers})
//	if err != nil {
//	  return err
//	}
//	return cmd.Run(ctx, os.Args[1:])
//
// Groups dispatch to their children by name or alias. Commands parse their
// options (positional arguments may appear between them), check the option
// constraints, load the profiles they declare, and run their handler.
//
// Commands are created only when invoked, so large trees start quickly.
package cli
