package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/internal/api"
	"vendorsync/internal/dataservice"
	"vendorsync/internal/reconcile"
	"vendorsync/pkg/models"
)

func TestPatchFromFlags(t *testing.T) {
	require.NoError(t, editInvoiceCmd.ParseFlags([]string{
		"--total", "99.5",
		"--due-date", "2025-07-31",
		"--terms", "Net 30",
	}))

	patch, err := patchFromFlags(editInvoiceCmd)
	require.NoError(t, err)

	require.NotNil(t, patch.TotalAmount)
	assert.Equal(t, 99.5, *patch.TotalAmount)
	require.NotNil(t, patch.DueDate)
	assert.Equal(t, time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC), *patch.DueDate)
	require.NotNil(t, patch.PaymentTerms)
	assert.Equal(t, "Net 30", *patch.PaymentTerms)
	assert.Nil(t, patch.Subtotal)
	assert.Nil(t, patch.InvoiceNumber)
	assert.Nil(t, patch.Date)
}

func TestPatchFromFlagsRejectsBadDate(t *testing.T) {
	c := &cobra.Command{}
	c.Flags().String("date", "", "")
	c.Flags().String("due-date", "", "")
	c.Flags().String("number", "", "")
	c.Flags().String("terms", "", "")
	for _, name := range []string{"subtotal", "total", "discount", "late-fee"} {
		c.Flags().Float64(name, 0, "")
	}
	require.NoError(t, c.ParseFlags([]string{"--date", "someday"}))

	_, err := patchFromFlags(c)
	assert.ErrorContains(t, err, "--date")
}

func TestHandleAPIError(t *testing.T) {
	log := zerolog.Nop()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invoice", &dataservice.ServiceError{Op: "MarkPaid", Err: dataservice.ErrInvoiceNotFound}, "invoice not found"},
		{"unauthorized", &api.APIError{Op: "list vendors", Status: 401, Err: api.ErrUnauthorized}, "VENDORSYNC_API_TOKEN"},
		{"server down", &api.APIError{Op: "list vendors", Status: 503}, "status 503"},
		{"aborted", &reconcile.ApplyError{Op: "Apply", Step: "confirm", Err: reconcile.ErrAborted}, "nothing was written"},
		{"empty patch", dataservice.ErrEmptyPatch, "at least one field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, handleAPIError(tt.err, log).Error(), tt.want)
		})
	}

	other := errors.New("boom")
	assert.Same(t, other, handleAPIError(other, log))
}

func TestWriteOutput(t *testing.T) {
	v := map[string]int{"vendors": 3}
	render := func(w io.Writer) error {
		_, err := io.WriteString(w, "3 vendors\n")
		return err
	}

	c := &cobra.Command{}
	c.Flags().Bool("json", false, "")
	var buf bytes.Buffer
	c.SetOut(&buf)

	require.NoError(t, writeOutput(c, v, render, zerolog.Nop()))
	assert.Equal(t, "3 vendors\n", buf.String())

	buf.Reset()
	require.NoError(t, c.Flags().Set("json", "true"))
	require.NoError(t, writeOutput(c, v, render, zerolog.Nop()))

	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, v, got)
}

func TestInvoiceRowsCarryDaysLeft(t *testing.T) {
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	soon := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	rows := invoiceRows([]models.Invoice{
		{ID: "i1", VendorID: "v1", DueDate: &soon},
		{ID: "i2", VendorID: "v1", DueDate: &late},
		{ID: "i3", VendorID: "v1"},
	}, now)

	require.Len(t, rows, 3)
	require.NotNil(t, rows[0].DaysLeft)
	assert.Equal(t, 3, *rows[0].DaysLeft)
	require.NotNil(t, rows[1].DaysLeft)
	assert.Equal(t, -2, *rows[1].DaysLeft)
	assert.Nil(t, rows[2].DaysLeft)
	assert.Equal(t, "3", daysOrDash(rows[0].DaysLeft))
	assert.Equal(t, "-", daysOrDash(rows[2].DaysLeft))

	data, err := json.Marshal(rows[0])
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "i1", got["id"])
	assert.Equal(t, 3.0, got["daysLeft"])

	assert.Empty(t, invoiceRows(nil, now))
	data, err = json.Marshal(invoiceRows(nil, now))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
