package medications

// Frequency define cuántas tomas programadas tiene un medicamento por día.
// @Enum once_daily, twice_daily, three_times_daily, four_times_daily, custom, as_needed
type Frequency string

const (
	FrequencyOnceDaily       Frequency = "once_daily"
	FrequencyTwiceDaily      Frequency = "twice_daily"
	FrequencyThreeTimesDaily Frequency = "three_times_daily"
	FrequencyFourTimesDaily  Frequency = "four_times_daily"
	FrequencyCustom          Frequency = "custom"
	FrequencyAsNeeded        Frequency = "as_needed"
)

// SlotsPerDay devuelve la cantidad de tomas programadas por día.
// 0 = as needed (sin slots) o frecuencia malformada (fail closed).
func (f Frequency) SlotsPerDay(timesPerDay int) int {
	switch f {
	case FrequencyOnceDaily:
		return 1
	case FrequencyTwiceDaily:
		return 2
	case FrequencyThreeTimesDaily:
		return 3
	case FrequencyFourTimesDaily:
		return 4
	case FrequencyCustom:
		if timesPerDay < 1 {
			return 0
		}
		return timesPerDay
	case FrequencyAsNeeded:
		return 0
	default:
		return 0
	}
}

// Scheduled indica si la frecuencia proyecta slots diarios.
func (f Frequency) Scheduled() bool {
	switch f {
	case FrequencyOnceDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily, FrequencyFourTimesDaily, FrequencyCustom:
		return true
	default:
		return false
	}
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnceDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily,
		FrequencyFourTimesDaily, FrequencyCustom, FrequencyAsNeeded:
		return true
	default:
		return false
	}
}

// Category clasifica el medicamento.
// @Enum prescription, otc, supplement, other
type Category string

const (
	CategoryPrescription   Category = "prescription"
	CategoryOverTheCounter Category = "otc"
	CategorySupplement     Category = "supplement"
	CategoryOther          Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPrescription, CategoryOverTheCounter, CategorySupplement, CategoryOther:
		return true
	default:
		return false
	}
}
