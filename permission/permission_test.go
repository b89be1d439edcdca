// Copyright 2026 The Authz-Core Authors
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

package permission

import "testing"

func TestNameJoinsResourceTypeAndAction(t *testing.T) {
	cases := []struct {
		resourceType, action, want string
	}{
		{"document", "read", "document.read"},
		{"invoice", "approve", "invoice.approve"},
		{"", "read", ".read"},
	}
	for _, c := range cases {
		if got := Name(c.resourceType, c.action); got != c.want {
			t.Errorf("Name(%q, %q) = %q, want %q", c.resourceType, c.action, got, c.want)
		}
	}
}
