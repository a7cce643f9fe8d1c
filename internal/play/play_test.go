package play

import "testing"

func TestKindRequiredRoles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want []Role
	}{
		{KindDualCoreVision, []Role{RoleLeft, RoleRight}},
		{KindMemoryEcho, []Role{RoleSolo}},
		{KindSharedGarden, []Role{RoleSolo}},
		{Kind("bogus"), nil},
	}
	for _, tc := range tests {
		got := tc.kind.RequiredRoles()
		if len(got) != len(tc.want) {
			t.Fatalf("%s roles = %v, want %v", tc.kind, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s roles = %v, want %v", tc.kind, got, tc.want)
			}
		}
	}
}

func TestKindIsValid(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{KindDualCoreVision, KindMemoryEcho, KindSharedGarden} {
		if !kind.IsValid() {
			t.Fatalf("%s should be valid", kind)
		}
	}
	if Kind("SOLITAIRE").IsValid() {
		t.Fatal("unknown kind should be invalid")
	}
}

func TestKindAsynchronous(t *testing.T) {
	t.Parallel()

	if KindDualCoreVision.Asynchronous() {
		t.Fatal("dual core vision is a live challenge, not asynchronous")
	}
	if !KindMemoryEcho.Asynchronous() || !KindSharedGarden.Asynchronous() {
		t.Fatal("puzzle kinds should be asynchronous")
	}
}

func TestRoleIsValid(t *testing.T) {
	t.Parallel()

	for _, role := range []Role{RoleLeft, RoleRight, RoleSolo} {
		if !role.IsValid() {
			t.Fatalf("%s should be valid", role)
		}
	}
	if Role("CENTER").IsValid() {
		t.Fatal("unknown role should be invalid")
	}
}
