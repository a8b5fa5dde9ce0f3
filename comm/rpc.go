package comm

import (
	"bytes"
	"fmt"
	"net/http"

	gorillarpc "github.com/gorilla/rpc"
	gorillajson "github.com/gorilla/rpc/json"

	"github.com/emmanuel-garza/ddfmm/ddferr"
)

// Service exposes a rank's Handler as a gorilla/rpc JSON-RPC service
// method, one endpoint per run. The method name "Service.Exchange"
// matches net/rpc's convention (exported type, exported method).
type Service struct {
	handler Handler
}

// ExchangeArgs/ExchangeReply are the JSON-RPC request/response shapes
// for Service.Exchange.
type ExchangeArgs struct {
	Req Request
}

type ExchangeReply struct {
	Resp Response
}

// Exchange is the single RPC method every rank's HTTP endpoint serves;
// it is the wire form of the Handler.HandleExchange call spec §4.1's
// two-phase protocol boils down to.
func (s *Service) Exchange(r *http.Request, args *ExchangeArgs, reply *ExchangeReply) error {
	resp, err := s.handler.HandleExchange(args.Req)
	if err != nil {
		return err
	}
	reply.Resp = resp
	return nil
}

// NewServiceHandler builds an http.Handler serving h over JSON-RPC via
// gorilla/rpc, for use with http.ListenAndServe on a per-rank port.
func NewServiceHandler(h Handler) (http.Handler, error) {
	server := gorillarpc.NewServer()
	server.RegisterCodec(gorillajson.NewCodec(), "application/json")
	if err := server.RegisterService(&Service{handler: h}, ""); err != nil {
		return nil, fmt.Errorf("%w: registering rpc service: %v", ddferr.ErrConfig, err)
	}
	return server, nil
}

// RPCTransport reaches other ranks over HTTP JSON-RPC, one endpoint
// per rank (an address table is supplied at construction). It is the
// production counterpart to LocalTransport when ranks are separate
// processes rather than goroutines.
type RPCTransport struct {
	rank      int
	endpoints []string // endpoints[r] is rank r's base URL
	client    *http.Client
}

// NewRPCTransport builds a transport for the calling rank given the
// full address table (index = rank).
func NewRPCTransport(rank int, endpoints []string) *RPCTransport {
	return &RPCTransport{rank: rank, endpoints: endpoints, client: http.DefaultClient}
}

func (t *RPCTransport) Rank() int     { return t.rank }
func (t *RPCTransport) NumRanks() int { return len(t.endpoints) }

// Exchange posts req as a JSON-RPC call to ownerRank's endpoint and
// decodes its reply. net/rpc's Client is not used directly here
// because gorilla/rpc's JSON codec is HTTP-transported rather than
// net/rpc's gob stream; Exchange speaks the same wire protocol a
// net/rpc client configured with the gorilla json codec would.
func (t *RPCTransport) Exchange(ownerRank int, req Request) (Response, error) {
	if ownerRank < 0 || ownerRank >= len(t.endpoints) {
		return Response{}, fmt.Errorf("%w: rank %d out of range", ddferr.ErrProtocol, ownerRank)
	}
	var buf bytes.Buffer
	clientReq, err := gorillajson.EncodeClientRequest("Service.Exchange", &ExchangeArgs{Req: req})
	if err != nil {
		return Response{}, fmt.Errorf("%w: encoding exchange request: %v", ddferr.ErrProtocol, err)
	}
	buf.Write(clientReq)

	httpReq, err := http.NewRequest(http.MethodPost, t.endpoints[ownerRank], &buf)
	if err != nil {
		return Response{}, fmt.Errorf("%w: building rpc request: %v", ddferr.ErrProtocol, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: rpc call to rank %d: %v", ddferr.ErrProtocol, ownerRank, err)
	}
	defer httpResp.Body.Close()

	var reply ExchangeReply
	if err := gorillajson.DecodeClientResponse(httpResp.Body, &reply); err != nil {
		return Response{}, fmt.Errorf("%w: decoding exchange reply: %v", ddferr.ErrProtocol, err)
	}
	return reply.Resp, nil
}
