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

package assignment

import (
	"testing"
	"time"
)

func TestPrincipalRoleExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if (&PrincipalRole{ExpiresAt: &past}).Expired(now) != true {
		t.Errorf("expected an assignment past its expiry to report Expired")
	}
	if (&PrincipalRole{ExpiresAt: &future}).Expired(now) != false {
		t.Errorf("expected an assignment not yet due to report not Expired")
	}
	if (&PrincipalRole{}).Expired(now) != false {
		t.Errorf("expected a nil ExpiresAt to never be considered expired")
	}
}

func TestPrincipalRoleLive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if !(&PrincipalRole{IsActive: true, ExpiresAt: &future}).Live(now) {
		t.Errorf("expected an active, unexpired assignment to be live")
	}
	if (&PrincipalRole{IsActive: true, ExpiresAt: &past}).Live(now) {
		t.Errorf("expected an expired assignment to not be live even if IsActive")
	}
	if (&PrincipalRole{IsActive: false}).Live(now) {
		t.Errorf("expected an inactive assignment to not be live")
	}
	if !(&PrincipalRole{IsActive: true}).Live(now) {
		t.Errorf("expected an active assignment with no expiry to be live")
	}
}
