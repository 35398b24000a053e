package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// NextDue вычисляет следующее время запуска после from (в UTC).
//
// Часовой пояс задаётся префиксом выражения, как в robfig/cron:
// "CRON_TZ=Europe/Moscow 0 9 * * *".
func NextDue(cronExpr string, from time.Time) (time.Time, error) {
	sched, err := nodes.ParseSchedule(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(from)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("schedule %q never fires", cronExpr)
	}
	return next.UTC(), nil
}

// timezone извлекает часовой пояс из префикса CRON_TZ= или TZ=.
func timezone(cronExpr string) string {
	for _, prefix := range []string{"CRON_TZ=", "TZ="} {
		if rest, ok := strings.CutPrefix(cronExpr, prefix); ok {
			if tz, _, found := strings.Cut(rest, " "); found {
				return tz
			}
		}
	}
	return "UTC"
}

// FromDocument выводит расписание графа из свойства schedule узла Start.
// ok=false — у графа нет расписания.
func FromDocument(graphID uuid.UUID, doc *graph.Document, now time.Time) (*domain.Schedule, bool, error) {
	var expr string
	for _, n := range doc.Nodes {
		if n.Type == domain.NodeTypeStart {
			expr = strings.TrimSpace(registry.GetString(n.Properties, nodes.PropSchedule))
			break
		}
	}
	if expr == "" {
		return nil, false, nil
	}

	next, err := NextDue(expr, now)
	if err != nil {
		return nil, false, err
	}

	return &domain.Schedule{
		GraphID:   graphID,
		CronExpr:  expr,
		Timezone:  timezone(expr),
		Enabled:   true,
		NextDueAt: &next,
		UpdatedAt: now,
	}, true, nil
}

// IdempotencyKey — ключ run, созданного расписанием к моменту due.
// Для одного графа и одного момента создаётся не больше одного run.
func IdempotencyKey(graphID uuid.UUID, due time.Time) string {
	return fmt.Sprintf("%s_%d", graphID, due.Unix())
}
