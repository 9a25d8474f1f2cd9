package llm

import (
	"strings"
	"testing"
)

func TestParseThemes_CleanJSON(t *testing.T) {
	raw := `{"AI반도체": [{"name": "삼성전자", "ticker": "005930", "sector": "semiconductor", "reason": "HBM 수주"}]}`
	themes, err := ParseThemes(raw)
	if err != nil {
		t.Fatalf("ParseThemes: %v", err)
	}
	if len(themes) != 1 {
		t.Fatalf("got %d themes, want 1", len(themes))
	}
	stocks := themes["AI반도체"]
	if len(stocks) != 1 {
		t.Fatalf("got %d stocks, want 1", len(stocks))
	}
	if stocks[0].Ticker != "005930" {
		t.Errorf("got ticker %q, want 005930", stocks[0].Ticker)
	}
	if stocks[0].Sector != "semiconductor" {
		t.Errorf("got sector %q, want semiconductor", stocks[0].Sector)
	}
}

func TestParseThemes_CodeFence(t *testing.T) {
	raw := "```json\n{\"로봇/자동화\": [{\"name\": \"레인보우로보틱스\", \"ticker\": \"277810\", \"sector\": \"robot\", \"reason\": \"협동로봇\"}]}\n```"
	themes, err := ParseThemes(raw)
	if err != nil {
		t.Fatalf("ParseThemes: %v", err)
	}
	if len(themes["로봇/자동화"]) != 1 {
		t.Errorf("got %d stocks, want 1", len(themes["로봇/자동화"]))
	}
}

func TestParseThemes_ProseWrapped(t *testing.T) {
	raw := `분류 결과는 다음과 같습니다:
{"전력기기/변압기": [{"name": "HD현대일렉트릭", "ticker": "267260", "sector": "energy", "reason": "변압기 수출"}]}
이상입니다.`
	themes, err := ParseThemes(raw)
	if err != nil {
		t.Fatalf("ParseThemes: %v", err)
	}
	if len(themes["전력기기/변압기"]) != 1 {
		t.Errorf("got %d stocks, want 1", len(themes["전력기기/변압기"]))
	}
}

func TestParseThemes_Truncated(t *testing.T) {
	// Responses cut off at the token ceiling at various points.
	tests := []struct {
		name string
		raw  string
	}{
		{
			"mid-array",
			`{"방산": [{"name": "한화에어로스페이스", "ticker": "012450", "sector": "defense", "reason": "수출 계약"}`,
		},
		{
			"after-object",
			`{"방산": [{"name": "한화에어로스페이스", "ticker": "012450", "sector": "defense", "reason": "수출 계약"}]`,
		},
		{
			"mid-string",
			`{"방산": [{"name": "한화에어로스페이스", "ticker": "012450", "sector": "defense", "reason": "수출`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			themes, err := ParseThemes(tt.raw)
			if err != nil {
				t.Fatalf("ParseThemes: %v", err)
			}
			if len(themes["방산"]) != 1 {
				t.Errorf("got %d stocks, want 1", len(themes["방산"]))
			}
		})
	}
}

func TestParseThemes_Malformed(t *testing.T) {
	long := strings.Repeat("도저히 복구할 수 없는 응답입니다. ", 20)
	_, err := ParseThemes(long)
	if err == nil {
		t.Fatal("expected error for unsalvageable response")
	}
	if len(err.Error()) > 300 {
		t.Errorf("error message should truncate the response, got %d bytes", len(err.Error()))
	}
}

func TestParseThemes_WrongShape(t *testing.T) {
	// Valid JSON, wrong structure.
	if _, err := ParseThemes(`["just", "an", "array"]`); err == nil {
		t.Error("expected error for non-object response")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"unclosed fence", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\": 1}\n```\n  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
