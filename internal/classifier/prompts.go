package classifier

import (
	"fmt"
	"strings"

	"themeradar/internal/config"
	"themeradar/internal/models"
)

const classificationPrompt = `당신은 주식 테마 분류 전문가입니다.
시장: %[1]s

아래 종목들을 **산업 테마**별로 분류해주세요.

## 테마 목록 (반드시 이 중에서 선택, 해당 없으면 가장 가까운 것 선택):
%[2]s
%[3]s

## 오늘 언급된 종목들:
%[4]s

## 핵심 규칙:
1. 테마는 반드시 위 목록에서 선택. 목록에 없는 새 테마는 정말 필요한 경우에만 최소한으로 생성
2. **금지 테마**: "신고가", "외국인매매", "기관매매", "실적발표", "수급" 등 시장 이벤트/매매 동향은 테마가 아님. 이런 맥락의 종목도 반드시 산업 테마로 분류
3. sector는 반드시 영문 고정 코드: %[5]s
4. 각 종목은 가장 적합한 1개 테마에만 배정 (정말 두 테마에 걸치는 경우만 2개)
5. reason은 15자 이내, 해당 종목의 사업 내용 기반
6. ticker가 빈 종목은 제외
7. **industry 힌트가 있으면 반드시 참고**: 종목의 실제 업종(industry)이 제공된 경우, 메시지 맥락보다 실제 업종을 우선하여 sector와 테마를 결정

반드시 아래 JSON 형식으로만 응답하세요:
{
  "테마이름": [
    {"name": "종목명", "ticker": "티커", "sector": "섹터코드", "reason": "분류 이유"},
    ...
  ]
}`

const mergeSmallThemesPrompt = `아래에 종목이 1개뿐인 테마들이 있습니다.
이 종목들을 기존 테마에 합치거나, 서로 묶어 2개 이상인 새 테마로 재분류해주세요.

기존 테마 목록 (여기에 합칠 수 있음):
%[1]s

재분류 대상 (1종목 테마):
%[2]s

규칙:
1. 기존 테마에 합칠 수 있으면 그 테마 이름을 그대로 사용
2. 기존 테마에 맞지 않으면 2개 이상 묶어 새 테마 생성
3. 어디에도 맞지 않는 종목은 "기타" 테마로
4. sector는 반드시 영문 고정 코드: %[3]s

반드시 아래 JSON 형식으로만 응답하세요:
{
  "테마이름": [
    {"name": "종목명", "ticker": "티커", "sector": "섹터코드", "reason": "분류 이유"}
  ]
}`

const splitThemePrompt = `테마 '%[1]s'에 %[2]d개 종목이 있어 세분화가 필요합니다.

종목 목록:
%[3]s

이 테마를 세분화된 하위 테마로 나눠주세요.

규칙:
1. 각 하위 테마는 최대 %[4]d개 종목
2. 하위 테마명은 구체적 한글 (예: "HBM메모리", "반도체장비")
3. sector는 기존 종목의 섹터코드 유지
4. 하위 테마에 1~2개 종목만 있다면 가장 가까운 테마에 합치세요

반드시 아래 JSON 형식으로만 응답하세요:
{
  "하위테마명": [
    {"name": "종목명", "ticker": "티커", "sector": "섹터코드", "reason": "분류 이유"}
  ]
}`

// buildThemeGuide renders the taxonomy as a prompt section, in the
// fixed sector order so repeated runs produce identical prompts.
func buildThemeGuide(taxonomy *config.Taxonomy, market string) string {
	themes := taxonomy.ForMarket(market)
	var lines []string
	for _, sector := range models.ValidSectors {
		for _, theme := range themes[sector] {
			lines = append(lines, fmt.Sprintf("  - %s (sector: %s)", theme, sector))
		}
	}
	return strings.Join(lines, "\n")
}

func marketLabel(market string) string {
	if market == models.MarketUS {
		return "미국(US)"
	}
	return "한국(KR)"
}

func sectorCodeList() string {
	return strings.Join(models.ValidSectors, ", ")
}

// formatAggregate renders one stock line for the classification prompt,
// including the cached industry hint when present.
func formatAggregate(a *models.DailyAggregate) string {
	tickerPart := "ticker: " + a.Ticker
	if a.Industry != "" {
		tickerPart += ", industry: " + a.Industry
	}
	ctx := a.AggregatedContext
	if runes := []rune(ctx); len(runes) > 80 {
		ctx = string(runes[:80])
	}
	return fmt.Sprintf("- %s (%s): 언급 %d회, 맥락: %s", a.DisplayName(), tickerPart, a.MentionCount, ctx)
}

func formatExistingThemes(names []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n이전 배치에서 이미 사용된 테마 (동일한 이름 사용 필수):\n")
	for _, n := range names {
		b.WriteString("  - " + n + "\n")
	}
	return b.String()
}
