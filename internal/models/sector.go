package models

// SectorOther is the catch-all sector code for anything unmapped.
const SectorOther = "other"

// ValidSectors is the closed set of sector codes. Grouping and filtering
// key on these codes, so nothing outside this set may reach storage.
var ValidSectors = []string{
	"semiconductor", "ai", "energy", "battery", "bio",
	"defense", "auto", "robot", "media", "shipbuilding",
	"finance", "software", "telecom", "consumer", "materials",
	"construction", "quantum", "cybersecurity", "blockchain", SectorOther,
}

var validSectorSet = func() map[string]bool {
	set := make(map[string]bool, len(ValidSectors))
	for _, s := range ValidSectors {
		set[s] = true
	}
	return set
}()

// sectorAliases maps Korean labels and GICS sector names the classifier
// tends to emit onto the fixed codes.
var sectorAliases = map[string]string{
	// Korean
	"반도체": "semiconductor", "정보기술": "software", "소프트웨어": "software",
	"에너지": "energy", "배터리": "battery", "바이오": "bio", "헬스케어": "bio",
	"방산": "defense", "방위": "defense", "자동차": "auto", "운송": "auto",
	"로봇": "robot", "미디어": "media", "조선": "shipbuilding",
	"금융": "finance", "통신": "telecom", "소비재": "consumer", "유통": "consumer",
	"소재": "materials", "화학": "materials", "자재": "materials",
	"건설": "construction", "양자": "quantum", "보안": "cybersecurity",
	"블록체인": "blockchain", "암호화폐": "blockchain", "유틸리티": "energy",
	"기타": SectorOther, "자산운용": "finance", "보험": "finance",
	"부동산": "construction", "기업인수합병": "finance", "산업": "materials",
	"전력": "energy", "항공": "defense", "우주": "defense", "게임": "media",
	"엔터": "media", "제약": "bio", "의료": "bio",
	// GICS
	"Communication Services": "media", "Industrials": "materials",
	"Consumer Discretionary": "consumer", "Consumer Staples": "consumer",
	"Health Care": "bio", "Information Technology": "software",
	"Real Estate": "construction", "Utilities": "energy",
	"Financials": "finance", "Materials": "materials",
	"Energy": "energy",
}

// IsValidSector reports whether code is in the closed sector set.
func IsValidSector(code string) bool {
	return validSectorSet[code]
}

// NormalizeSector maps a raw classifier sector label to a fixed code.
// Codes already in the closed set pass through; known Korean/GICS labels
// are translated; anything else becomes "other".
func NormalizeSector(raw string) string {
	if validSectorSet[raw] {
		return raw
	}
	if code, ok := sectorAliases[raw]; ok {
		return code
	}
	return SectorOther
}
