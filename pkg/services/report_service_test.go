package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"policy-deliberation-api/pkg/models"
)

func TestReportServiceBuild(t *testing.T) {
	env := sampleEnvelope()
	env.CitizenEvaluations = []models.CitizenOutcome{
		models.Succeeded(0, models.CitizenEvaluation{EvaluatorName: "市民00", OverallRating: 4, Concerns: "財源"}),
		models.Failed[models.CitizenEvaluation](1, "市民01", "評価結果を解析できませんでした"),
	}
	env.FutureEvaluations = []models.FutureOutcome{
		models.Succeeded(0, models.FutureEvaluation{EvaluatorName: "市民00", AgeNow: 35, OverallRating: 5}),
	}
	env.ReviewResult = models.ReviewVerdict{
		LegalCompliance: models.ReviewAspect{Score: 4, Issues: []string{"条例改正"}},
		Approved:        true,
		Attempt:         1,
	}

	buf, err := NewReportService().Build(env)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetOverview, SheetCitizens, SheetFuture, SheetReview}, f.GetSheetList())

	title, err := f.GetCellValue(SheetOverview, "B4")
	require.NoError(t, err)
	assert.Equal(t, "子育て支援の所得制限撤廃", title)

	rows, err := f.GetRows(SheetCitizens)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "市民00", rows[1][1])
	assert.Equal(t, "4", rows[1][3])
	assert.Equal(t, "市民01", rows[2][1])
	assert.Equal(t, "評価結果を解析できませんでした", rows[2][8])

	future, err := f.GetRows(SheetFuture)
	require.NoError(t, err)
	require.Len(t, future, 2)
	assert.Equal(t, "35", future[1][2])

	review, err := f.GetRows(SheetReview)
	require.NoError(t, err)
	assert.Equal(t, "条例改正", review[1][2])
}

func TestReportServiceSkippedFutureEvaluation(t *testing.T) {
	env := sampleEnvelope()
	env.ExecutionStatus.FutureEvaluationSkipped = true

	buf, err := NewReportService().Build(env)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetFuture)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1][1], "時限的な施策")
}
