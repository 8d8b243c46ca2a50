package llm

import "encoding/json"

// providerResponse covers the response shapes seen across inference
// providers. Fields irrelevant to a given provider simply stay zero.
type providerResponse struct {
	Output  string `json:"output"`
	Text    string `json:"text"`
	Results []struct {
		Output string `json:"output"`
		Text   string `json:"text"`
	} `json:"results"`
	Generations []struct {
		Text string `json:"text"`
	} `json:"generations"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// outputExtractors are tried in order; the first non-empty match wins.
var outputExtractors = []func(providerResponse) string{
	func(r providerResponse) string { return r.Output },
	func(r providerResponse) string { return r.Text },
	func(r providerResponse) string {
		if len(r.Results) > 0 {
			if r.Results[0].Output != "" {
				return r.Results[0].Output
			}
			return r.Results[0].Text
		}
		return ""
	},
	func(r providerResponse) string {
		if len(r.Generations) > 0 {
			return r.Generations[0].Text
		}
		return ""
	},
	func(r providerResponse) string {
		if len(r.Choices) == 0 {
			return ""
		}
		choice := r.Choices[0]
		if choice.Message.Content != "" {
			return choice.Message.Content
		}
		if choice.Text != "" {
			return choice.Text
		}
		return choice.Delta.Content
	},
}

// NormalizeOutput reduces any known provider response shape to a string. When
// nothing matches, the raw payload is returned verbatim so the caller always
// gets a string to work with.
func NormalizeOutput(payload []byte) string {
	var resp providerResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return string(payload)
	}

	for _, extract := range outputExtractors {
		if out := extract(resp); out != "" {
			return out
		}
	}
	return string(payload)
}
