package monitor

import "time"

type MonitorRecord struct {
	Key                   string
	ResourceId            string
	ApiVersion            string
	CheckInterval         int64
	CurrentRepresentation *string
	LastCheckedAt         *int64
	LastChangedAt         *int64
	NextCheckAt           int64
	ClaimedBy             *string
	CreatedOn             int64
}

func (r *MonitorRecord) Monitor() *Monitor {
	return &Monitor{
		Key:                   r.Key,
		ResourceId:            r.ResourceId,
		ApiVersion:            r.ApiVersion,
		CheckInterval:         time.Duration(r.CheckInterval) * time.Millisecond,
		CurrentRepresentation: r.CurrentRepresentation,
		LastCheckedAt:         r.LastCheckedAt,
		LastChangedAt:         r.LastChangedAt,
		NextCheckAt:           r.NextCheckAt,
		CreatedOn:             r.CreatedOn,
	}
}
