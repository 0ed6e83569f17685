package tools

// Result is the unified return type from skill execution. Most skills just
// return a plain string; Result exists for the handful that need to flag an
// error distinctly or carry async status without throwing.
type Result struct {
	ForLLM  string // content returned to the LLM as the tool_result
	IsError bool   // marks the result as an error string
	Async   bool   // the skill kicked off work that completes later
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func AsyncResult(message string) *Result {
	return &Result{ForLLM: message, Async: true}
}

func (r *Result) String() string {
	if r == nil {
		return ""
	}
	return r.ForLLM
}
