package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func replayMarkerHandlers() repository.ModelHandlers[*replayMarkerRecord] {
	return repository.ModelHandlers[*replayMarkerRecord]{
		NewRecord: func() *replayMarkerRecord {
			return &replayMarkerRecord{}
		},
		GetID: func(record *replayMarkerRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *replayMarkerRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "subscription"
		},
		GetIdentifierValue: func(record *replayMarkerRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Subscription)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
