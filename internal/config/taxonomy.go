package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Taxonomy is the fixed per-market theme dictionary, keyed by sector
// code. It is loaded once at startup and passed explicitly to the
// classifier so tests can run against synthetic taxonomies.
type Taxonomy struct {
	KR map[string][]string `mapstructure:"kr_themes"`
	US map[string][]string `mapstructure:"us_themes"`
}

// ForMarket returns the sector → theme-name dictionary for a market.
func (t *Taxonomy) ForMarket(market string) map[string][]string {
	if market == "US" {
		return t.US
	}
	return t.KR
}

// LoadTaxonomy reads the taxonomy file. A missing or malformed file
// falls back to the built-in dictionary rather than failing the run;
// the returned taxonomy is never nil.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return DefaultTaxonomy(), err
	}

	var t Taxonomy
	if err := v.Unmarshal(&t); err != nil {
		return DefaultTaxonomy(), fmt.Errorf("failed to unmarshal taxonomy: %w", err)
	}
	if len(t.KR) == 0 && len(t.US) == 0 {
		return DefaultTaxonomy(), nil
	}
	return &t, nil
}

// DefaultTaxonomy returns the built-in theme dictionaries.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		KR: map[string][]string{
			"semiconductor": {"HBM메모리", "AI반도체", "반도체장비", "반도체소재", "시스템반도체", "파운드리"},
			"ai":            {"AI소프트웨어", "AI데이터센터"},
			"energy":        {"전력기기/변압기", "원전/SMR", "태양광/신재생", "수소/연료전지"},
			"battery":       {"2차전지/배터리", "배터리소재"},
			"bio":           {"바이오/신약", "의료기기/의료AI", "헬스케어"},
			"defense":       {"방산", "우주항공", "드론/UAV"},
			"auto":          {"전기차/자율주행", "자동차부품"},
			"robot":         {"로봇/자동화"},
			"media":         {"게임", "엔터/미디어", "광고", "K-콘텐츠"},
			"shipbuilding":  {"조선/해운"},
			"finance":       {"금융/보험", "리츠/부동산", "증권"},
			"software":      {"클라우드/SaaS", "플랫폼"},
			"telecom":       {"통신/5G", "네트워크장비"},
			"consumer":      {"화장품/뷰티", "K-푸드/식음료", "유통/소비재", "여행/레저", "담배"},
			"materials":     {"화학/소재", "디스플레이", "전자부품", "철강/비철금속"},
			"construction":  {"건설/인프라"},
			"quantum":       {"양자컴퓨팅"},
			"cybersecurity": {"사이버보안"},
			"blockchain":    {"블록체인/암호화폐"},
		},
		US: map[string][]string{
			"semiconductor": {"AI칩/GPU", "반도체장비", "반도체패키징", "메모리"},
			"ai":            {"AI인프라/클라우드", "AI소프트웨어/에이전트"},
			"energy":        {"청정에너지/전력", "원전/SMR/우라늄", "석유/가스"},
			"battery":       {"배터리/리튬"},
			"bio":           {"바이오테크/제약", "의료서비스", "대마초/Cannabis"},
			"defense":       {"방산/우주항공", "드론/UAV", "스페이스"},
			"auto":          {"전기차/EV", "자율주행"},
			"robot":         {"로봇/자동화"},
			"media":         {"디지털미디어/스트리밍", "소셜미디어"},
			"finance":       {"핀테크", "금융/보험"},
			"software":      {"SaaS/소프트웨어", "전자상거래", "사이버보안"},
			"telecom":       {"네트워크/통신"},
			"consumer":      {"소비재/유통", "식음료", "럭셔리/의류"},
			"materials":     {"산업재/소재", "광물/희토류"},
			"blockchain":    {"블록체인/암호화폐", "스테이블코인/DeFi"},
			"quantum":       {"양자컴퓨팅"},
		},
	}
}
