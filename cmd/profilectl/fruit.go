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

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/abcxyz/cmdkit/cli"
	"github.com/abcxyz/cmdkit/handler"
	"github.com/abcxyz/cmdkit/logging"
)

// gramsPerCharacter is what a label weighs per character of text.
const gramsPerCharacter = 2

type bananaProfile struct {
	Color  string `json:"color"`
	Origin struct {
		Country string `json:"country"`
		Farm    string `json:"farm"`
	} `json:"origin"`
}

type appleProfile struct {
	Variety string   `json:"variety"`
	Tags    []string `json:"tags"`
}

func registerFruitHandlers(reg *handler.Registry[cli.Handler]) {
	reg.MustRegister("fruit.smoothie", blendSmoothie)
	reg.MustRegister("fruit.weigh", weighLabel)
	reg.MustRegister("fruit.label", printLabel)
}

func blendSmoothie(ctx context.Context, p *cli.Params) error {
	logger := logging.FromContext(ctx)

	bp, err := p.Profiles.Require("banana")
	if err != nil {
		return err
	}
	var banana bananaProfile
	if err := bp.Decode(&banana); err != nil {
		return err
	}

	parts := []string{fmt.Sprintf("a %s banana", orDefault(banana.Color, "yellow"))}
	if ap, ok := p.Profiles.Get("apple"); ok {
		var a appleProfile
		if err := ap.Decode(&a); err != nil {
			return err
		}
		parts = append(parts, fmt.Sprintf("a %s apple", a.Variety))
	}

	// Options of the base type override the orchard profile.
	location := p.String("location")
	if op, ok := p.Profiles.Get("orchard"); ok && location == "" {
		if v, ok := op.Get("location"); ok {
			location, _ = v.AsString()
		}
	}

	size := orDefault(p.String("size"), "medium")
	msg := fmt.Sprintf("Blended a %s smoothie with %s", size, strings.Join(parts, " and "))
	if p.Bool("ice") {
		msg += " on ice"
	}
	if location != "" {
		msg += " from " + location
	}

	logger.DebugContext(ctx, "blended smoothie",
		"size", size,
		"profile", bp.Name)

	p.Response.SetMessage("%s.", msg)
	p.Response.SetData(map[string]any{
		"size":     size,
		"banana":   bp.Name,
		"location": location,
	})
	return nil
}

func labelText(p *cli.Params) string {
	if len(p.StdinData) > 0 {
		return strings.TrimSpace(string(p.StdinData))
	}
	return p.String("text")
}

func weighLabel(_ context.Context, p *cli.Params) error {
	text := labelText(p)
	fmt.Fprintf(p.Stdout, "weighing %q\n", text)
	p.Response.SetData(map[string]any{"grams": len(text) * gramsPerCharacter})
	return nil
}

func printLabel(_ context.Context, p *cli.Params) error {
	text := labelText(p)
	if text == "" {
		return fmt.Errorf("label text is required as a positional argument or on stdin")
	}
	weight, _ := p.Arguments["weight"].(float64)
	fmt.Fprintf(p.Stdout, "[ %s ] %gg\n", text, weight)
	p.Response.SetData(map[string]any{"text": text, "grams": weight})
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
