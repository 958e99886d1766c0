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

package server

import (
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/evaline-ju/agent-examples/pkg/agents"
)

const protocolVersion = "0.3.0"

// NewAgentCard builds the A2A card advertised for profile at url.
func NewAgentCard(profile agents.Profile, url string) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               profile.DisplayName,
		Description:        profile.Description,
		URL:                url,
		Version:            profile.Version,
		ProtocolVersion:    protocolVersion,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities: a2a.AgentCapabilities{
			Streaming: false,
		},
		Skills: []a2a.AgentSkill{{
			ID:          profile.Skill.ID,
			Name:        profile.Skill.Name,
			Description: profile.Skill.Description,
			Tags:        profile.Skill.Tags,
			Examples:    profile.Skill.Examples,
		}},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
	}
}
