package comm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emmanuel-garza/ddfmm/comm"
)

type echoHandler struct{}

func (echoHandler) HandleExchange(req comm.Request) (comm.Response, error) {
	return comm.Response{Payload: req.Keys}, nil
}

func TestLocalTransportDispatchesToOwner(t *testing.T) {
	transports := comm.NewLocalCluster(3)
	for _, tr := range transports {
		tr.RegisterHandler(echoHandler{})
	}

	req := comm.Request{Phase: "get", Kind: comm.KindGet, Keys: [][]byte{[]byte("a"), []byte("b")}}
	resp, err := transports[0].Exchange(2, req)
	require.NoError(t, err)
	require.Equal(t, req.Keys, resp.Payload)
}

func TestLocalTransportUnregisteredRankErrors(t *testing.T) {
	transports := comm.NewLocalCluster(2)
	transports[0].RegisterHandler(echoHandler{})
	_, err := transports[0].Exchange(1, comm.Request{})
	require.ErrorIs(t, err, comm.ErrNoHandler)
}
