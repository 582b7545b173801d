package hashcol

import "testing"

func TestChangeTracker(t *testing.T) {
	var ct ChangeTracker
	deepEqual(t, ct.IsChanged(), false)
	valEqual(t, ct.Was("x", Text("cur")), Text("cur"))

	deepEqual(t, ct.record("x", Int(1), Int(1)), false)
	deepEqual(t, ct.record("x", Int(1), Int(2)), true)
	deepEqual(t, ct.record("x", Int(2), Int(3)), true)
	chg, found := ct.Change("x")
	deepEqual(t, found, true)
	deepEqual(t, chg.Name, "x")
	valEqual(t, chg.Before, Int(1))
	valEqual(t, chg.After, Int(3))
	valEqual(t, ct.Was("x", Int(3)), Int(1))

	deepEqual(t, ct.record("y", Null(), Text("a")), true)
	deepEqual(t, ct.ChangedNames(), []string{"x", "y"})

	ct.ChangesApplied()
	deepEqual(t, ct.IsChanged(), false)
	prev := ct.PreviousChanges()
	if len(prev) != 2 {
		t.Fatalf("PreviousChanges = %v, wanted 2 entries", prev)
	}
	deepEqual(t, prev[0].Name, "x")
	deepEqual(t, prev[1].HasBefore(), false)
	deepEqual(t, prev[1].HasAfter(), true)

	ct.Clear()
	isempty(t, ct.PreviousChanges())
}

func TestChangeTracker_revert(t *testing.T) {
	var ct ChangeTracker
	ct.record("x", Int(1), Int(2))
	deepEqual(t, ct.record("x", Int(2), Int(1)), true)
	deepEqual(t, ct.Changed("x"), false)
}

func TestChangeTracker_willChange(t *testing.T) {
	var ct ChangeTracker
	ct.WillChange("x", Int(1))
	deepEqual(t, ct.Changed("x"), true)
	ct.WillChange("x", Int(5))
	chg, _ := ct.Change("x")
	valEqual(t, chg.Before, Int(1))
	valEqual(t, chg.Pair(), List(Int(1), Int(1)))
}
