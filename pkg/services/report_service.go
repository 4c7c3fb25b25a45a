package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"policy-deliberation-api/pkg/models"
)

// レポートのシート名
const (
	SheetOverview = "概要"
	SheetCitizens = "市民評価"
	SheetFuture   = "将来評価"
	SheetReview   = "審査"
)

// ReportService は熟議結果をExcelファイルに書き出します。
type ReportService struct{}

// NewReportService ReportServiceを生成
func NewReportService() *ReportService {
	return &ReportService{}
}

// Build は熟議結果のレポート（xlsx）を作成します。
func (s *ReportService) Build(env models.ResultEnvelope) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetOverview); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetCitizens, SheetFuture, SheetReview} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("シート '%s' の作成に失敗: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, err
	}

	steps := []func(*excelize.File, models.ResultEnvelope, int) error{
		writeOverview, writeCitizens, writeFuture, writeReview,
	}
	for _, step := range steps {
		if err := step(f, env, header); err != nil {
			return nil, fmt.Errorf("レポートの作成に失敗: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("レポートの書き出しに失敗: %w", err)
	}
	return buf, nil
}

// writeRows は1行目を見出しとして行を書き込みます。
func writeRows(f *excelize.File, sheet string, header int, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, header)
}

func writeOverview(f *excelize.File, env models.ResultEnvelope, header int) error {
	a := env.FinalAssessment
	st := env.ExecutionStatus
	rows := [][]any{
		{"項目", "内容"},
		{"実行ID", env.RunID},
		{"市民の声", env.Input},
		{"政策名", env.PolicyProposal.Title},
		{"概要", env.PolicyProposal.Summary},
		{"実施計画", env.PolicyProposal.ImplementationPlan},
		{"期待される効果", env.PolicyProposal.ExpectedEffects},
		{"時限的な施策", yesNo(env.PolicyProposal.IsTemporary.Bool())},
		{"対象地域", env.Demographics.TargetArea},
		{"公平性", a.Equity.Score},
		{"有効性", a.Effectiveness.Score},
		{"透明性", a.Transparency.Score},
		{"持続可能性", a.Sustainability.Score},
		{"倫理的受容性", a.EthicalAcceptability.Score},
		{"総合点", a.TotalScore},
		{"推奨区分", string(a.Recommendation)},
		{"審査回数", st.ReviewAttempts},
		{"審査承認", yesNo(st.Approved)},
		{"市民評価（成功/失敗）", fmt.Sprintf("%d / %d", st.CitizenEvaluationCount, st.FailedEvaluationCount)},
		{"開始", env.StartedAt.Format("2006-01-02 15:04:05")},
		{"終了", env.FinishedAt.Format("2006-01-02 15:04:05")},
	}
	if err := writeRows(f, SheetOverview, header, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetOverview, "A", "A", 22); err != nil {
		return err
	}
	return f.SetColWidth(SheetOverview, "B", "B", 80)
}

func writeCitizens(f *excelize.File, env models.ResultEnvelope, header int) error {
	rows := [][]any{{"No.", "評価者", "直接影響", "総合評価", "生活への影響", "期待", "懸念", "提案", "エラー"}}
	for _, o := range env.CitizenEvaluations {
		if !o.OK() {
			rows = append(rows, []any{o.Index + 1, failureName(o.Failure), "", "", "", "", "", "", failureText(o.Failure)})
			continue
		}
		e := o.Value
		rows = append(rows, []any{o.Index + 1, e.EvaluatorName, yesNo(e.IsDirectlyAffected.Bool()), e.OverallRating.Int(),
			e.PersonalImpact, e.Expectations, e.Concerns, e.Recommendations, ""})
	}
	return writeRows(f, SheetCitizens, header, rows)
}

func writeFuture(f *excelize.File, env models.ResultEnvelope, header int) error {
	rows := [][]any{{"No.", "評価者", "10年後の年齢", "総合評価", "将来の影響", "長期的な利点", "長期的な懸念", "提案", "エラー"}}
	if env.ExecutionStatus.FutureEvaluationSkipped {
		rows = append(rows, []any{"", "時限的な施策のため将来評価は行っていません"})
	}
	for _, o := range env.FutureEvaluations {
		if !o.OK() {
			rows = append(rows, []any{o.Index + 1, failureName(o.Failure), "", "", "", "", "", "", failureText(o.Failure)})
			continue
		}
		e := o.Value
		rows = append(rows, []any{o.Index + 1, e.EvaluatorName, e.AgeNow.Int(), e.OverallRating.Int(),
			e.FutureImpact, e.LongTermBenefits, e.LongTermConcerns, e.Recommendations, ""})
	}
	return writeRows(f, SheetFuture, header, rows)
}

func writeReview(f *excelize.File, env models.ResultEnvelope, header int) error {
	v := env.ReviewResult
	rows := [][]any{
		{"観点", "点数", "課題", "推奨事項"},
		{"法令適合性", v.LegalCompliance.Score.Int(), strings.Join(v.LegalCompliance.Issues, "\n"), strings.Join(v.LegalCompliance.Recommendations, "\n")},
		{"実現可能性", v.Feasibility.Score.Int(), strings.Join(v.Feasibility.Issues, "\n"), strings.Join(v.Feasibility.Recommendations, "\n")},
		{"総評", "", v.OverallAssessment, strings.Join(v.ImprovementSuggestions, "\n")},
		{"承認", yesNo(v.Approved.Bool()), fmt.Sprintf("第%d回審査", v.Attempt), ""},
	}
	return writeRows(f, SheetReview, header, rows)
}

func yesNo(b bool) string {
	if b {
		return "はい"
	}
	return "いいえ"
}

func failureName(e *models.EvaluationError) string {
	if e == nil {
		return ""
	}
	return e.EvaluatorName
}

func failureText(e *models.EvaluationError) string {
	if e == nil {
		return ""
	}
	return e.Error
}
