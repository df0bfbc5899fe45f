package indicator

import "math"

// Чистые функции над ценовыми рядами. Состояния и горутин тут нет,
// всё потребляется пайплайном сигналов.

type emaState struct {
	period int
	alpha  float64
	value  float64
	warmup int
}

func newEMA(period int) emaState {
	if period <= 1 {
		period = 1
	}
	return emaState{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}
}

func (e *emaState) update(price float64) {
	if e.warmup == 0 {
		e.value = price
		e.warmup = 1
		return
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
	if e.warmup < e.period {
		e.warmup++
	}
}

// EMA — экспоненциальная скользящая по всему ряду, len(out) == len(values).
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	st := newEMA(period)
	for i, v := range values {
		st.update(v)
		out[i] = st.value
	}
	return out
}

// SMA — простая скользящая. Первые period-1 значений равны среднему
// доступного окна.
func SMA(values []float64, period int) []float64 {
	if period <= 1 {
		period = 1
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
			out[i] = sum / float64(period)
			continue
		}
		out[i] = sum / float64(i+1)
	}
	return out
}

// RSI по Уайлдеру. До прогрева отдаём нейтральные 50.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}

	var avgGain, avgLoss float64
	for i := range values {
		if i == 0 {
			out[i] = 50
			continue
		}
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if i <= period {
			avgGain += gain
			avgLoss += loss
			if i < period {
				out[i] = 50
				continue
			}
			avgGain /= float64(period)
			avgLoss /= float64(period)
		} else {
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}

		if avgLoss == 0 {
			if avgGain == 0 {
				// ряд без движения — нейтраль
				out[i] = 50
				continue
			}
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD — разность EMA fast/slow плюс сигнальная линия.
func MACD(values []float64, fast, slow, signal int) (macd, sig []float64) {
	ef := EMA(values, fast)
	es := EMA(values, slow)
	macd = make([]float64, len(values))
	for i := range values {
		macd[i] = ef[i] - es[i]
	}
	sig = EMA(macd, signal)
	return macd, sig
}

// Volatility — стандартное отклонение последних period доходностей close-close.
func Volatility(closes []float64, period int) float64 {
	if len(closes) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, closes[i]/closes[i-1]-1)
	}
	if period > 0 && len(rets) > period {
		rets = rets[len(rets)-period:]
	}
	if len(rets) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets))

	return math.Sqrt(variance)
}
