package tools

import "testing"

func TestFilterArgs_DropsUnknownKeys(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":   map[string]interface{}{"type": "string"},
			"action": map[string]interface{}{"type": "string"},
		},
	}
	args := map[string]interface{}{"path": "/tmp", "action": "list", "rm_rf": true}

	filtered, dropped := FilterArgs(schema, args)
	if len(filtered) != 2 || filtered["path"] != "/tmp" || filtered["action"] != "list" {
		t.Fatalf("unexpected filtered args: %+v", filtered)
	}
	if len(dropped) != 1 || dropped[0] != "rm_rf" {
		t.Fatalf("expected rm_rf to be reported dropped, got %+v", dropped)
	}
}

func TestFilterArgs_NoPropertiesDropsEverything(t *testing.T) {
	filtered, dropped := FilterArgs(map[string]interface{}{}, map[string]interface{}{"x": 1})
	if len(filtered) != 0 {
		t.Fatalf("expected nothing to survive, got %+v", filtered)
	}
	if len(dropped) != 1 {
		t.Fatalf("expected x reported as dropped, got %+v", dropped)
	}
}

func TestSkillNameSet_NilMeansUnrestricted(t *testing.T) {
	if SkillNameSet(nil) != nil {
		t.Fatalf("expected nil names to produce a nil (unrestricted) set")
	}
}

func TestSkillNameSet_BuildsLookup(t *testing.T) {
	set := SkillNameSet([]string{"a", "b"})
	if !set["a"] || !set["b"] || set["c"] {
		t.Fatalf("unexpected set contents: %+v", set)
	}
}

func TestSubsetOf_NilAllowedIsUnrestricted(t *testing.T) {
	if !SubsetOf([]string{"a", "b"}, nil) {
		t.Fatalf("nil allowed should permit anything")
	}
}

func TestSubsetOf_RequiresEveryElementPresent(t *testing.T) {
	allowed := map[string]bool{"a": true, "b": true}
	if !SubsetOf([]string{"a"}, allowed) {
		t.Fatalf("expected subset check to pass")
	}
	if SubsetOf([]string{"a", "c"}, allowed) {
		t.Fatalf("expected subset check to fail when c is missing")
	}
}

func TestSubsetOf_NilRequiredUnderRestrictionFails(t *testing.T) {
	allowed := map[string]bool{"a": true}
	if SubsetOf(nil, allowed) {
		t.Fatalf("an unrestricted (nil) agent skill set must not fit within a restricted allowed set")
	}
}

func TestSubsetOf_NilRequiredAndNilAllowedPasses(t *testing.T) {
	if !SubsetOf(nil, nil) {
		t.Fatalf("unrestricted agent under unrestricted caller should be allowed")
	}
}
