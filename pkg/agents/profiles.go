// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agents defines the agent services this module can run and binds
// a service profile to a reasoning loop.
package agents

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Agent names.
const (
	Cheerup = "cheerup"
	Recipe  = "recipe"
	Trivia  = "trivia"
	Weather = "weather"
)

const (
	defaultModel = "qwen2.5:3b"
	triviaModel  = "qwen3:4b"
	cardVersion  = "1.0.0"
)

// ErrUnknownAgent is returned by Lookup for an unregistered name.
var ErrUnknownAgent = errors.New("unknown agent")

// Skill describes what an agent offers on its card.
type Skill struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	Examples    []string
}

// Profile is the static definition of one agent service.
type Profile struct {
	// Name is the registry key, e.g. "cheerup".
	Name string

	DisplayName string
	Description string
	Version     string
	Skill       Skill

	// WorkingText is shown to the caller while a turn runs.
	WorkingText string

	SystemPrompt string

	DefaultModel       string
	DefaultTemperature *float64

	// UsesTools binds the MCP tool gateway to every turn.
	UsesTools bool
}

var registry = map[string]Profile{
	Cheerup: {
		Name:        Cheerup,
		DisplayName: "Cheerup Companion",
		Description: `A cheerful conversational companion designed to brighten your day
and put you in a great mood.

## What I can do
- Share jokes and fun facts to make you smile
- Give you a pep talk when you need encouragement
- Celebrate your wins, big or small
- Be a positive, supportive friend to chat with
`,
		Version: cardVersion,
		Skill: Skill{
			ID:          "cheerup_companion",
			Name:        "Cheerup Companion",
			Description: "**Cheerup Companion** - A warm, uplifting friend that brightens your day with humor, encouragement, and positive vibes.",
			Tags:        []string{"cheerful", "motivation", "humor", "wellbeing"},
			Examples: []string{
				"I'm having a rough day",
				"Tell me something to make me smile",
				"I need a pep talk",
				"Make me laugh!",
			},
		},
		WorkingText:  "Brewing up some good vibes...",
		SystemPrompt: cheerupPrompt,
		DefaultModel: defaultModel,
	},
	Recipe: {
		Name:        Recipe,
		DisplayName: "Recipe Assistant",
		Description: `This agent helps you decide what to cook for dinner based on the
ingredients you have in your fridge.

## How it works
- Tell the agent what ingredients you have
- Optionally mention dietary preferences
- Get 2-3 recipe suggestions with instructions
`,
		Version: cardVersion,
		Skill: Skill{
			ID:          "recipe_assistant",
			Name:        "Recipe Assistant",
			Description: "**Recipe Assistant** – Suggests dinner recipes based on your ingredients.",
			Tags:        []string{"recipe", "cooking", "food"},
			Examples: []string{
				"I have chicken, rice, and broccoli",
				"What can I make with pasta and tomatoes?",
				"Suggest a vegetarian dinner",
			},
		},
		WorkingText:  "Thinking about recipes...",
		SystemPrompt: recipePrompt,
		DefaultModel: defaultModel,
	},
	Trivia: {
		Name:        Trivia,
		DisplayName: "Trivia Master",
		Description: `This agent is an interactive trivia quiz host that tests your
knowledge across a wide range of topics.

## How it works
- Ask for a trivia question or specify a topic
- The agent asks a question and waits for your answer
- It tells you if you're right and explains the answer
- Keep playing as many rounds as you like
`,
		Version: cardVersion,
		Skill: Skill{
			ID:          "trivia_master",
			Name:        "Trivia Master",
			Description: "**Trivia Master** – Tests your knowledge with fun trivia questions across many topics.",
			Tags:        []string{"trivia", "quiz", "knowledge", "fun"},
			Examples: []string{
				"Give me a trivia question",
				"Quiz me on science",
				"Let's play trivia about history",
			},
		},
		WorkingText:  "Coming up with a trivia question...",
		SystemPrompt: triviaPrompt,
		DefaultModel: triviaModel,
	},
	Weather: {
		Name:        Weather,
		DisplayName: "Weather Assistant",
		Description: `This agent answers questions about the current weather using
tools served by an MCP gateway.

## How it works
- Ask about the weather in any city
- The agent looks it up with its weather tools
- It summarizes the result for you
`,
		Version: cardVersion,
		Skill: Skill{
			ID:          "weather_assistant",
			Name:        "Weather Assistant",
			Description: "**Weather Assistant** – Looks up current weather conditions for any city.",
			Tags:        []string{"weather", "forecast", "tools"},
			Examples: []string{
				"What's the weather in Boston?",
				"How is the weather in NY today?",
			},
		},
		WorkingText:        "Checking the weather...",
		SystemPrompt:       weatherPrompt,
		DefaultModel:       defaultModel,
		DefaultTemperature: float64Ptr(0),
		UsesTools:          true,
	},
}

// Lookup returns the profile registered under name (case-insensitive).
func Lookup(name string) (Profile, error) {
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownAgent, name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names returns the registered agent names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func float64Ptr(v float64) *float64 { return &v }
