// Package schedulev1 is the establishment schedule contract consumed by booking-service.
//
// Messages are plain structs carried with the "json" gRPC codec (libs/grpcx), so the package has
// no protoc step. Field names follow the proto3 JSON mapping.
package schedulev1

type DayScheduleRequest struct {
	EstablishmentId string `json:"establishment_id"`
	ServiceId       string `json:"service_id"`
	// Date is a calendar date, YYYY-MM-DD.
	Date string `json:"date"`
}

func (x *DayScheduleRequest) GetEstablishmentId() string {
	if x == nil {
		return ""
	}
	return x.EstablishmentId
}

func (x *DayScheduleRequest) GetServiceId() string {
	if x == nil {
		return ""
	}
	return x.ServiceId
}

func (x *DayScheduleRequest) GetDate() string {
	if x == nil {
		return ""
	}
	return x.Date
}

// Window is one opening period, in minutes since local midnight.
type Window struct {
	StartMinute int32 `json:"start_minute"`
	EndMinute   int32 `json:"end_minute"`
}

type DayScheduleResponse struct {
	EstablishmentId string    `json:"establishment_id"`
	Timezone        string    `json:"timezone"`
	IsOpen          bool      `json:"is_open"`
	Windows         []*Window `json:"windows"`
	ServiceName     string    `json:"service_name"`
	DurationMinutes int32     `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
}

func (x *DayScheduleResponse) GetTimezone() string {
	if x == nil {
		return ""
	}
	return x.Timezone
}

func (x *DayScheduleResponse) GetIsOpen() bool {
	if x == nil {
		return false
	}
	return x.IsOpen
}

func (x *DayScheduleResponse) GetWindows() []*Window {
	if x == nil {
		return nil
	}
	return x.Windows
}

func (x *DayScheduleResponse) GetServiceName() string {
	if x == nil {
		return ""
	}
	return x.ServiceName
}

func (x *DayScheduleResponse) GetDurationMinutes() int32 {
	if x == nil {
		return 0
	}
	return x.DurationMinutes
}

func (x *DayScheduleResponse) GetPriceCents() int64 {
	if x == nil {
		return 0
	}
	return x.PriceCents
}
