package tools

// FilterArgs projects an LLM-provided argument map down to the keys declared
// in a skill's JSON-Schema `properties`. Unknown keys are dropped silently
// (Open Question b in DESIGN.md: the contract drops them without surfacing
// an error to the LLM, but callers may log the dropped set for debugging).
// This is the one argument-filtering rule the orchestrator and the agent
// router both apply before invoking a skill.
func FilterArgs(schema map[string]interface{}, args map[string]interface{}) (filtered map[string]interface{}, dropped []string) {
	props, _ := schema["properties"].(map[string]interface{})
	filtered = make(map[string]interface{}, len(args))
	for k, v := range args {
		if _, ok := props[k]; ok {
			filtered[k] = v
		} else {
			dropped = append(dropped, k)
		}
	}
	return filtered, dropped
}

// SkillNameSet builds a lookup set from a list of skill names, used for
// `allowed_skills` intersection checks. A nil slice means unrestricted and
// is represented as a nil map (see Registry.Subset).
func SkillNameSet(names []string) map[string]bool {
	if names == nil {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// SubsetOf reports whether every element of required is present in allowed.
// A nil allowed means unrestricted (everything is allowed). Used to decide
// whether an agent template's skill allowlist fits within the caller's
// allowed_skills before it is offered as a delegate_to_agent target.
//
// A nil required means the agent itself is unrestricted ("all skills"), so
// under a restricted allowed it can't be shown to fit: offering it would let
// the caller reach skills outside allowed through the agent's own loop.
func SubsetOf(required []string, allowed map[string]bool) bool {
	if allowed == nil {
		return true
	}
	if required == nil {
		return false
	}
	for _, r := range required {
		if !allowed[r] {
			return false
		}
	}
	return true
}
