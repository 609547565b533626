package record

import "testing"

func TestParseMFA(t *testing.T) {
	tests := []struct {
		in         string
		wantModule string
		wantName   string
		wantArity  int
		wantOK     bool
	}{
		{"MyApp.Accounts.get_user/1", "MyApp.Accounts", "get_user", 1, true},
		{"MyApp.foo/0", "MyApp", "foo", 0, true},
		{"MyApp.A.B.C.bar/3", "MyApp.A.B.C", "bar", 3, true},
		{"NoSlash.foo", "", "", 0, false},
		{"MyApp.foo/-1", "", "", 0, false},
		{"MyApp.foo/abc", "", "", 0, false},
		{"justname/1", "", "", 0, false},
		{"/1", "", "", 0, false},
		{"MyApp./1", "", "", 0, false},
		{"", "", "", 0, false},
	}
	for _, tt := range tests {
		module, name, arity, ok := ParseMFA(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParseMFA(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if module != tt.wantModule || name != tt.wantName || arity != tt.wantArity {
			t.Errorf("ParseMFA(%q) = (%q,%q,%d), want (%q,%q,%d)",
				tt.in, module, name, arity, tt.wantModule, tt.wantName, tt.wantArity)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	mfa := Format("MyApp.Accounts", "get_user", 1)
	if mfa != "MyApp.Accounts.get_user/1" {
		t.Fatalf("Format = %q", mfa)
	}
	module, name, arity, ok := ParseMFA(mfa)
	if !ok || module != "MyApp.Accounts" || name != "get_user" || arity != 1 {
		t.Fatalf("round trip failed: %q %q %d %v", module, name, arity, ok)
	}
}
