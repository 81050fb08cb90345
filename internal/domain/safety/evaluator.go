package safety

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"med-dose-guard/internal/domain/medications"
	"med-dose-guard/internal/domain/medlogs"
)

// Violation es un valor transitorio calculado; nunca se persiste.
type Violation struct {
	Constraint medications.Constraint
	Message    string
}

// CheckConstraints evalúa todas las restricciones del medicamento para una
// toma candidata en `now`, sobre un snapshot de logs ya cargado.
// Pura: no lee el reloj ni muta nada. Lista vacía = seguro.
//
// Se evalúan TODAS las restricciones en orden de declaración (sin
// short-circuit) para devolver el set completo de violaciones de una vez.
//
// Fail-open documentado: con snapshot vacío las reglas de conteo/espaciado/
// monto no encuentran nada que violar. Es deliberado para un sistema
// advisory: ante falta de datos se advierte menos,
// nunca se bloquea de más.
func CheckConstraints(med medications.Medication, now time.Time, logs []medlogs.MedicationLog) []Violation {
	out := make([]Violation, 0)
	for _, c := range med.Constraints {
		if v, violated := checkOne(med, c, now, logs); violated {
			out = append(out, v)
		}
	}
	return out
}

// checkOne hace el type switch exhaustivo sobre el set cerrado de variantes.
func checkOne(med medications.Medication, c medications.Constraint, now time.Time, logs []medlogs.MedicationLog) (Violation, bool) {
	switch c := c.(type) {
	case medications.MinTimeBetween:
		last, ok := lastTakenAt(logs, now)
		if !ok {
			return Violation{}, false
		}
		elapsed := now.Sub(last)
		if elapsed >= c.MinGap { // límite inclusivo: en el instante exacto ya es seguro
			return Violation{}, false
		}
		return Violation{
			Constraint: c,
			Message: fmt.Sprintf("minimum %s between doses; wait %s more (last taken %s)",
				c.MinGap, c.MinGap-elapsed, last.Format(time.RFC3339)),
		}, true

	case medications.MaxPerPeriod:
		count := len(takenInWindow(logs, now, c.Period))
		if count < c.MaxCount {
			return Violation{}, false
		}
		return Violation{
			Constraint: c,
			Message: fmt.Sprintf("already took %d of %d allowed doses in the last %s",
				count, c.MaxCount, c.Period),
		}, true

	case medications.MaxCumulativeAmount:
		sum := sumAmountInWindow(logs, now, c.Period, c.Unit)
		if sum+med.DoseAmount <= c.MaxAmount {
			return Violation{}, false
		}
		return Violation{
			Constraint: c,
			Message: fmt.Sprintf("taking %g %s now would reach %g %s in the last %s, over the %g %s limit",
				med.DoseAmount, c.Unit, sum+med.DoseAmount, c.Unit, c.Period, c.MaxAmount, c.Unit),
		}, true

	case medications.TimeWindow:
		// Límites proyectados sobre el día calendario de `now`, inclusivos.
		if c.NotBefore != nil && now.Before(c.NotBefore.On(now)) {
			return Violation{
				Constraint: c,
				Message:    fmt.Sprintf("too early: doses allowed from %s", c.NotBefore),
			}, true
		}
		if c.NotAfter != nil && now.After(c.NotAfter.On(now)) {
			return Violation{
				Constraint: c,
				Message:    fmt.Sprintf("too late: doses allowed until %s", c.NotAfter),
			}, true
		}
		return Violation{}, false

	case medications.Custom:
		// Informativo: nunca se evalúa.
		return Violation{}, false

	default:
		// Set cerrado: una variante nueva debe agregarse acá antes de existir.
		return Violation{}, false
	}
}

// lastTakenAt devuelve el Taken más reciente con Timestamp <= now.
func lastTakenAt(logs []medlogs.MedicationLog, now time.Time) (time.Time, bool) {
	var last time.Time
	found := false
	for _, l := range logs {
		if l.Status != medlogs.StatusTaken || l.Timestamp.After(now) {
			continue
		}
		if !found || l.Timestamp.After(last) {
			last = l.Timestamp
			found = true
		}
	}
	return last, found
}

// takenInWindow devuelve los Taken con Timestamp en la ventana móvil
// (now-period, now], ordenados ascendente.
func takenInWindow(logs []medlogs.MedicationLog, now time.Time, period time.Duration) []medlogs.MedicationLog {
	cutoff := now.Add(-period)
	out := make([]medlogs.MedicationLog, 0)
	for _, l := range logs {
		if l.Status != medlogs.StatusTaken {
			continue
		}
		if l.Timestamp.After(cutoff) && !l.Timestamp.After(now) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func sumAmountInWindow(logs []medlogs.MedicationLog, now time.Time, period time.Duration, unit string) float64 {
	sum := 0.0
	for _, l := range takenInWindow(logs, now, period) {
		if !unitMatches(l.Unit, unit) {
			continue
		}
		sum += l.Amount
	}
	return sum
}

// unitMatches compara unidades de forma laxa; un log sin unidad (histórico
// previo al monto estructurado) cuenta igual.
func unitMatches(logUnit, constraintUnit string) bool {
	logUnit = strings.TrimSpace(logUnit)
	if logUnit == "" {
		return true
	}
	return strings.EqualFold(logUnit, strings.TrimSpace(constraintUnit))
}
