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

package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_DecodeArgs(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		args, err := Call{Name: "get_weather", Arguments: `{"city":"NY","days":2}`}.DecodeArgs()
		require.NoError(t, err)
		assert.Equal(t, "NY", args["city"])
		assert.Equal(t, float64(2), args["days"])
	})

	t.Run("empty", func(t *testing.T) {
		args, err := Call{Name: "ping", Arguments: "  "}.DecodeArgs()
		require.NoError(t, err)
		assert.Empty(t, args)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Call{Name: "get_weather", Arguments: `{"city":`}.DecodeArgs()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"get_weather"`)
	})
}

func TestNamesAndLookup(t *testing.T) {
	calls := []Call{{Name: "a"}, {Name: "b"}, {Name: "a"}}
	assert.Equal(t, []string{"a", "b", "a"}, Names(calls))

	specs := []Spec{{Name: "a", Description: "first"}, {Name: "b"}}
	s, ok := Lookup(specs, "a")
	require.True(t, ok)
	assert.Equal(t, "first", s.Description)

	_, ok = Lookup(specs, "missing")
	assert.False(t, ok)
}
