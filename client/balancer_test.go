package client

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

type stubClient struct {
	err   error
	calls int
}

func (s *stubClient) SendMessage(ctx context.Context, boc []byte) error {
	s.calls++
	return s.err
}

func (s *stubClient) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return NewResult(nil), nil
}

func (s *stubClient) GetAccount(ctx context.Context, addr *address.Address) (*Account, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Account{Address: addr, Status: "active"}, nil
}

func (s *stubClient) GetTransactions(ctx context.Context, addr *address.Address, lt uint64, hash []byte, limit int) ([]*Transaction, error) {
	s.calls++
	return nil, s.err
}

func (s *stubClient) GetMasterchainInfo(ctx context.Context) (*MasterchainInfo, error) {
	s.calls++
	return &MasterchainInfo{Workchain: -1, Seqno: 100}, s.err
}

func (s *stubClient) GetConfigParam(ctx context.Context, id int32) (*cell.Cell, error) {
	s.calls++
	return nil, s.err
}

func (s *stubClient) Close() error { return nil }

func TestBalancerFailover(t *testing.T) {
	bad := &stubClient{err: errors.New("connection refused")}
	good := &stubClient{}

	// Weight forces the failing provider to be picked first.
	b, err := NewBalancer(zerolog.Nop(), []Client{bad, good}, []int{1000000, 1})
	require.NoError(t, err)

	acc, err := b.GetAccount(context.Background(), testAddr)
	require.NoError(t, err)
	assert.True(t, acc.Active())
	assert.Equal(t, 1, good.calls)
}

func TestBalancerExitCodeNotRetried(t *testing.T) {
	first := &stubClient{err: &ExitCodeError{Method: "seqno", Code: 11}}
	second := &stubClient{err: &ExitCodeError{Method: "seqno", Code: 11}}

	b, err := NewBalancer(zerolog.Nop(), []Client{first, second}, nil)
	require.NoError(t, err)

	_, err = b.RunGetMethod(context.Background(), testAddr, "seqno")
	var exitErr *ExitCodeError
	require.ErrorAs(t, err, &exitErr)
	// Contract errors stop the failover loop at the first provider.
	assert.Equal(t, 1, first.calls+second.calls)
}

func TestBalancerAllFail(t *testing.T) {
	sentinel := errors.New("down")
	b, err := NewBalancer(zerolog.Nop(), []Client{&stubClient{err: sentinel}, &stubClient{err: sentinel}}, nil)
	require.NoError(t, err)

	err = b.SendMessage(context.Background(), []byte{0x01})
	require.ErrorIs(t, err, sentinel)
}

func TestBalancerNoProviders(t *testing.T) {
	_, err := NewBalancer(zerolog.Nop(), nil, nil)
	require.Error(t, err)
}
