package llm

import (
	"encoding/json"
	"testing"
)

func TestContent_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantSet   bool
		wantMulti bool
		wantText  string
		wantErr   bool
	}{
		{name: "string", input: `"hello"`, wantSet: true, wantText: "hello"},
		{name: "empty string", input: `""`, wantSet: true, wantText: ""},
		{name: "null", input: `null`},
		{name: "parts", input: `[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"b"}]`, wantSet: true, wantMulti: true, wantText: "a\nb"},
		{name: "empty parts", input: `[]`, wantSet: true, wantMulti: true},
		{name: "number", input: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Content
			err := json.Unmarshal([]byte(tt.input), &c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if c.IsSet() != tt.wantSet {
				t.Errorf("IsSet() = %v, want %v", c.IsSet(), tt.wantSet)
			}
			if c.IsMultipart() != tt.wantMulti {
				t.Errorf("IsMultipart() = %v, want %v", c.IsMultipart(), tt.wantMulti)
			}
			if c.String() != tt.wantText {
				t.Errorf("String() = %q, want %q", c.String(), tt.wantText)
			}
		})
	}
}

func TestMessage_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "text",
			msg:  Message{Role: RoleSystem, Content: Text("be brief")},
			want: `{"role":"system","content":"be brief"}`,
		},
		{
			name: "image part omits empty text",
			msg:  Message{Role: RoleUser, Content: Parts(ImagePart("data:image/png;base64,AA==", DetailLow))},
			want: `{"role":"user","content":[{"type":"image_url","image_url":{"url":"data:image/png;base64,AA==","detail":"low"}}]}`,
		},
		{
			name: "empty text part keeps text key",
			msg:  Message{Role: RoleUser, Content: Parts(TextPart(""))},
			want: `{"role":"user","content":[{"type":"text","text":""}]}`,
		},
		{
			name: "unset content",
			msg:  Message{Role: RoleAssistant},
			want: `{"role":"assistant","content":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChatCompletion_UnmarshalLooseNumbers(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantCreated *int64
		wantUsage   Usage
	}{
		{
			name:        "integers",
			input:       `{"created":1700000000,"usage":{"prompt_tokens":12,"completion_tokens":6,"total_tokens":18}}`,
			wantCreated: ptr(int64(1700000000)),
			wantUsage:   Usage{PromptTokens: 12, CompletionTokens: 6, TotalTokens: 18},
		},
		{
			name:        "fractional values truncate",
			input:       `{"created":1700000000.5,"usage":{"prompt_tokens":12.0,"completion_tokens":6.9,"total_tokens":18.9}}`,
			wantCreated: ptr(int64(1700000000)),
			wantUsage:   Usage{PromptTokens: 12, CompletionTokens: 6, TotalTokens: 18},
		},
		{
			name:        "quoted numbers",
			input:       `{"created":"1700000000","usage":{"prompt_tokens":"12","completion_tokens":"6","total_tokens":"18"}}`,
			wantCreated: ptr(int64(1700000000)),
			wantUsage:   Usage{PromptTokens: 12, CompletionTokens: 6, TotalTokens: 18},
		},
		{
			name:      "non-numeric values are dropped",
			input:     `{"created":"yesterday","usage":{"prompt_tokens":true,"total_tokens":7}}`,
			wantUsage: Usage{TotalTokens: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c ChatCompletion
			if err := json.Unmarshal([]byte(tt.input), &c); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			switch {
			case tt.wantCreated == nil && c.Created != nil:
				t.Errorf("Created = %d, want nil", *c.Created)
			case tt.wantCreated != nil && (c.Created == nil || *c.Created != *tt.wantCreated):
				t.Errorf("Created = %v, want %d", c.Created, *tt.wantCreated)
			}
			if c.Usage == nil || *c.Usage != tt.wantUsage {
				t.Errorf("Usage = %+v, want %+v", c.Usage, tt.wantUsage)
			}
		})
	}
}

func TestChatCompletion_UnmarshalKeepsOtherFields(t *testing.T) {
	var c ChatCompletion
	input := `{"id":"c1","created":1.5,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}]}`
	if err := json.Unmarshal([]byte(input), &c); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if c.ID == nil || *c.ID != "c1" || c.Model == nil || *c.Model != "m" {
		t.Errorf("ID, Model = %v, %v", c.ID, c.Model)
	}
	if got, _ := c.FirstContent(); got != "hi" {
		t.Errorf("FirstContent() = %q, want hi", got)
	}
	if c.Usage != nil {
		t.Errorf("Usage = %+v, want nil", c.Usage)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestRole_IsValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant} {
		if !r.IsValid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if Role("tool").IsValid() {
		t.Error("tool should not be valid")
	}
}
