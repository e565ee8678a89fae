/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jerry-enebeli/srp/model"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// DecideClaim is the body of the approve, deny and cancel endpoints.
type DecideClaim struct {
	ProcessedBy  string           `json:"processed_by"`
	Reason       string           `json:"reason"`
	PayoutAmount *decimal.Decimal `json:"payout_amount"`
}

func (d *DecideClaim) ValidateDecideClaim() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.ProcessedBy, validation.Required, validation.Length(1, 100)),
		validation.Field(&d.Reason, validation.Length(0, 1000)),
		validation.Field(&d.PayoutAmount, validation.By(func(value interface{}) error {
			amount, _ := value.(*decimal.Decimal)
			if amount != nil && amount.IsNegative() {
				return errors.New("must not be negative")
			}
			return nil
		})),
	)
}

// Payout converts the optional override into the form the service expects.
func (d *DecideClaim) Payout() decimal.NullDecimal {
	if d.PayoutAmount == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d.PayoutAmount)
}

// ListQuery is the paging and filtering of list endpoints.
type ListQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (q *ListQuery) ValidateListQuery() error {
	q.Status = strings.ToLower(strings.TrimSpace(q.Status))
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	return validation.ValidateStruct(q,
		validation.Field(&q.Status, validation.In(
			string(model.ClaimPending),
			string(model.ClaimApproved),
			string(model.ClaimDenied),
			string(model.ClaimPaid),
			string(model.ClaimCancelled),
		)),
		validation.Field(&q.Limit, validation.Min(1), validation.Max(MaxPageSize)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}
