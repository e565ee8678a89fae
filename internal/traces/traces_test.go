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

package traces

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestExporterOptions(t *testing.T) {
	assert.Nil(t, exporterOptions(""))
	assert.Len(t, exporterOptions("http://collector:4318"), 2)
	assert.Len(t, exporterOptions("https://collector:4318"), 1)
}

func TestSetupOTelSDK(t *testing.T) {
	ctx := context.Background()
	shutdown, err := SetupOTelSDK(ctx, "SRP", "http://127.0.0.1:4318")
	require.NoError(t, err)

	_, span := otel.Tracer("srp-test").Start(ctx, "test-span")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// Nothing listens on the collector address, so only a bounded shutdown is asserted.
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NotPanics(t, func() { _ = shutdown(shutdownCtx) })
}
