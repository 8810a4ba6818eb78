package service_interfaces

import "context"

type InterestService interface {
	ApplyInterest(ctx context.Context) (InterestRunSummary, error)
}
