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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/srp"
	model2 "github.com/jerry-enebeli/srp/api/model"
	"github.com/jerry-enebeli/srp/model"
)

func (a Api) GetClaim(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	resp, err := a.srp.GetClaim(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ListClaims(c *gin.Context) {
	var query model2.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := query.ValidateListQuery(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.srp.ListClaims(c.Request.Context(), model.ClaimStatus(query.Status), query.Limit, query.Offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// decide returns the handler of one manual claim action.
func (a Api) decide(action srp.ManualAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := int64Param(c, "id")
		if !ok {
			return
		}

		var body model2.DecideClaim
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
			return
		}
		if err := body.ValidateDecideClaim(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
			return
		}

		resp, err := a.srp.DecideClaim(c.Request.Context(), id, action, body.ProcessedBy, body.Reason, body.Payout())
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// ReprocessMail forgets a processed mail so the next run examines it again.
func (a Api) ReprocessMail(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}

	if err := a.srp.ReprocessMail(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
