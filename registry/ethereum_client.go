package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// keyRegistryABI describes the read-only view function this client calls on
// a key-registry contract: getKey(string) -> (algorithm, isActive, publicKey).
const keyRegistryABI = `[
	{
		"constant": true,
		"inputs": [{"name": "keyId", "type": "string"}],
		"name": "getKey",
		"outputs": [
			{"name": "algorithm", "type": "string"},
			{"name": "isActive", "type": "bool"},
			{"name": "publicKey", "type": "string"}
		],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`

// EthereumClient implements Client by reading key records from a contract
// on an EVM chain, as an alternate to the default HTTP registry backend.
type EthereumClient struct {
	client          *ethclient.Client
	contractABI     abi.ABI
	contractAddress common.Address
}

// NewEthereumClient dials rpcURL and parses the key-registry ABI for calls
// against the contract at contractAddr.
func NewEthereumClient(rpcURL, contractAddr string) (*EthereumClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to connect to RPC endpoint: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(keyRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("registry: failed to parse key registry ABI: %w", err)
	}

	return &EthereumClient{
		client:          client,
		contractABI:     parsedABI,
		contractAddress: common.HexToAddress(contractAddr),
	}, nil
}

// Backend identifies this client for metrics labeling.
func (c *EthereumClient) Backend() string { return "ethereum" }

// FetchKey calls getKey(key_id) on the configured contract and maps the
// result onto the same KeyRecord shape the HTTP registry backend returns.
func (c *EthereumClient) FetchKey(ctx context.Context, keyID string) (*KeyRecord, error) {
	callData, err := c.contractABI.Pack("getKey", keyID)
	if err != nil {
		return nil, &ErrRegistryUnavailable{Cause: fmt.Errorf("failed to pack call data: %w", err)}
	}

	output, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contractAddress,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, &ErrRegistryUnavailable{Cause: fmt.Errorf("contract call failed: %w", err)}
	}

	var result struct {
		Algorithm string
		IsActive  bool
		PublicKey string
	}
	if err := c.contractABI.UnpackIntoInterface(&result, "getKey", output); err != nil {
		return nil, &ErrRegistryUnavailable{Cause: fmt.Errorf("failed to unpack getKey result: %w", err)}
	}

	if result.PublicKey == "" {
		return nil, ErrKeyNotFound
	}

	isActive := "false"
	if result.IsActive {
		isActive = "true"
	}

	return &KeyRecord{
		KeyID:     keyID,
		Algorithm: strings.ToLower(result.Algorithm),
		IsActive:  isActive,
		PublicKey: result.PublicKey,
	}, nil
}
