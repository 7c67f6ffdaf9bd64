package mapper

import (
	"time"

	"eabridge/src/externalmodel"
	"eabridge/src/model"
)

// MapSignalToLog converts a polled backend signal into its signal log row.
func MapSignalToLog(sig externalmodel.Signal, receivedAt time.Time) model.SignalLog {
	return model.SignalLog{
		SignalID:     sig.ID,
		EA:           sig.EA,
		Asset:        model.NormalizeSymbol(sig.Asset),
		Action:       sig.Action,
		Price:        sig.Price.String(),
		TakeProfit:   sig.TakeProfit.String(),
		StopLoss:     sig.StopLoss.String(),
		SignalTime:   sig.Time.UTC(),
		LatestUpdate: sig.LatestUpdate.UTC(),
		ReceivedAt:   receivedAt.UTC(),
	}
}

// MapSignalsToLogs keeps the batch order.
func MapSignalsToLogs(signals []externalmodel.Signal, receivedAt time.Time) []model.SignalLog {
	logs := make([]model.SignalLog, 0, len(signals))
	for _, sig := range signals {
		logs = append(logs, MapSignalToLog(sig, receivedAt))
	}
	return logs
}
