package safety

import (
	"time"

	"med-dose-guard/internal/domain/medications"
	"med-dose-guard/internal/domain/medlogs"
)

// NextAvailableTime devuelve el primer instante en que TODAS las
// restricciones violadas quedan libres a la vez (máximo de los instantes
// individuales). nil = ya es seguro en `now`.
//
// Punto fijo: evaluar CheckConstraints exactamente en el instante devuelto
// no produce violaciones (asumiendo que no se registran tomas nuevas).
func NextAvailableTime(med medications.Medication, now time.Time, logs []medlogs.MedicationLog) *time.Time {
	var latest time.Time
	for _, c := range med.Constraints {
		if _, violated := checkOne(med, c, now, logs); !violated {
			continue
		}
		t, ok := clearTime(med, c, now, logs)
		if !ok {
			// Sin instante finito (p.ej. la dosis sola supera el tope
			// acumulado). La violación sigue visible; acá no aporta.
			continue
		}
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() || !latest.After(now) {
		return nil
	}
	return &latest
}

// clearTime calcula cuándo se libera UNA restricción violada, por sí sola.
func clearTime(med medications.Medication, c medications.Constraint, now time.Time, logs []medlogs.MedicationLog) (time.Time, bool) {
	switch c := c.(type) {
	case medications.MinTimeBetween:
		last, ok := lastTakenAt(logs, now)
		if !ok {
			return time.Time{}, false
		}
		return last.Add(c.MinGap), true

	case medications.MaxPerPeriod:
		window := takenInWindow(logs, now, c.Period)
		// Deben envejecer fuera de la ventana los `drop` logs más viejos
		// para que el conteo baje a maxCount-1.
		drop := len(window) - c.MaxCount + 1
		if drop <= 0 || drop > len(window) {
			return time.Time{}, false
		}
		return window[drop-1].Timestamp.Add(c.Period), true

	case medications.MaxCumulativeAmount:
		if med.DoseAmount > c.MaxAmount {
			return time.Time{}, false // nunca se libera
		}
		window := takenInWindow(logs, now, c.Period)
		sum := 0.0
		for _, l := range window {
			if unitMatches(l.Unit, c.Unit) {
				sum += l.Amount
			}
		}
		// Se descartan dosis de la más vieja a la más nueva hasta que la
		// suma restante más la candidata entra bajo el tope; el instante
		// es cuando la última descartada sale de la ventana móvil.
		for _, l := range window {
			if !unitMatches(l.Unit, c.Unit) {
				continue
			}
			sum -= l.Amount
			if sum+med.DoseAmount <= c.MaxAmount {
				return l.Timestamp.Add(c.Period), true
			}
		}
		return time.Time{}, false

	case medications.TimeWindow:
		if c.NotBefore != nil && now.Before(c.NotBefore.On(now)) {
			return c.NotBefore.On(now), true
		}
		// Pasada la ventana de hoy: rollover a mañana.
		tomorrow := now.AddDate(0, 0, 1)
		if c.NotBefore != nil {
			return c.NotBefore.On(tomorrow), true
		}
		// Solo not_after configurado: la ventana reabre a la medianoche.
		return startOfDay(tomorrow), true

	case medications.Custom:
		return time.Time{}, false

	default:
		return time.Time{}, false
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
