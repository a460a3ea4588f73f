package dc

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		op      Operation
		current Status
		want    Status
	}{
		{OpSubmitPO, StatusCreated, StatusPOSubmitted},
		{OpApprovePO, StatusPOSubmitted, StatusSentToManager},
		{OpRejectPO, StatusPOSubmitted, StatusCreated},
		{OpRequestWarehouse, StatusSentToManager, StatusPendingDC},
		{OpProcessWarehouse, StatusPendingDC, StatusCompleted},
		{OpProcessWarehouse, StatusWarehouseProcessing, StatusCompleted},
		{OpHold, StatusPendingDC, StatusHold},
		{OpHold, StatusWarehouseProcessing, StatusHold},
		{OpCompleteDelivery, StatusWarehouseProcessing, StatusCompleted},
	}
	for _, tc := range cases {
		got, err := Transition(tc.op, tc.current)
		require.NoError(t, err, "%s from %s", tc.op, tc.current)
		require.Equal(t, tc.want, got)
	}
}

func TestTransitionRejectsWrongStatus(t *testing.T) {
	cases := []struct {
		op      Operation
		current Status
	}{
		{OpSubmitPO, StatusPOSubmitted},
		{OpSubmitPO, StatusCompleted},
		{OpApprovePO, StatusCreated},
		{OpRejectPO, StatusSentToManager},
		{OpRequestWarehouse, StatusCreated},
		{OpRequestWarehouse, StatusPendingDC},
		{OpProcessWarehouse, StatusCreated},
		{OpProcessWarehouse, StatusCompleted},
		{OpHold, StatusCreated},
		{OpHold, StatusCompleted},
	}
	for _, tc := range cases {
		_, err := Transition(tc.op, tc.current)
		var precondition *PreconditionError
		require.ErrorAs(t, err, &precondition, "%s from %s", tc.op, tc.current)
		require.Equal(t, tc.current, precondition.Current)
	}
}

func TestPreconditionErrorMessage(t *testing.T) {
	_, err := Transition(OpSubmitPO, StatusCompleted)
	require.EqualError(t, err, "dc must be in 'created' status, got: completed")

	_, err = Transition(OpProcessWarehouse, StatusCreated)
	require.EqualError(t, err, "dc must be in 'pending_dc' or 'warehouse_processing' status, got: created")

	var precondition *PreconditionError
	require.ErrorAs(t, err, &precondition)
	require.Equal(t, http.StatusConflict, precondition.HTTPStatus())
}

func TestTransitionUnknownOperation(t *testing.T) {
	_, err := Transition(Operation("teleport"), StatusCreated)
	require.Error(t, err)
	var precondition *PreconditionError
	require.False(t, errors.As(err, &precondition))
}

func TestOriginValid(t *testing.T) {
	require.True(t, DealOrigin(1).Valid())
	require.True(t, SaleOrigin(2).Valid())
	require.False(t, Origin{}.Valid())
	require.False(t, Origin{Kind: OriginDeal}.Valid())
	require.False(t, Origin{Kind: OriginDeal, OrderID: 1, SaleID: 2}.Valid())
	require.False(t, Origin{Kind: OriginSale, OrderID: 3}.Valid())
}
