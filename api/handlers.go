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
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/srp/internal/apierror"
)

// respondError writes err with the status its API error code maps to.
func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}

// int64Param reads a numeric path parameter, answering 400 when it is not one.
func int64Param(c *gin.Context, name string) (int64, bool) {
	raw, passed := c.Params.Get(name)
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required. pass it in the route /:" + name})
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}
