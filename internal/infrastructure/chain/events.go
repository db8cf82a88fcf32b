package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

// Event is a decoded CreditsPurchased or CreditsOffset log.
type Event struct {
	Name     string         `json:"event"`
	TxHash   string         `json:"txHash"`
	LogIndex uint           `json:"logIndex"`
	Wallet   common.Address `json:"wallet"` // buyer or company
	Amount   *big.Int       `json:"amount"`
	Paid     *big.Int       `json:"paid,omitempty"`
	NftID    *big.Int       `json:"nftId,omitempty"`
}

// DecodeLogs decodes the logs emitted by contract. Logs from other addresses and logs
// that do not match a known event are skipped.
func DecodeLogs(parsed abi.ABI, contract common.Address, logs []*types.Log) []Event {
	var events []Event
	for _, lg := range logs {
		if lg == nil || lg.Address != contract || len(lg.Topics) == 0 {
			continue
		}
		ev, err := parsed.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}
		decoded, err := decodeLog(ev, lg)
		if err != nil {
			log.Warn().Err(err).Str("tx_hash", lg.TxHash.Hex()).Uint("log_index", lg.Index).
				Str("event", ev.Name).Msg("skipping undecodable log")
			continue
		}
		events = append(events, *decoded)
	}
	return events
}

func decodeLog(ev *abi.Event, lg *types.Log) (*Event, error) {
	fields := map[string]interface{}{}
	if err := ev.Inputs.UnpackIntoMap(fields, lg.Data); err != nil {
		return nil, err
	}
	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
		return nil, err
	}

	out := &Event{
		Name:     ev.Name,
		TxHash:   lg.TxHash.Hex(),
		LogIndex: lg.Index,
		Amount:   bigField(fields, "amount"),
	}
	switch ev.Name {
	case EventCreditsPurchased:
		out.Wallet, _ = fields["buyer"].(common.Address)
		out.Paid = bigField(fields, "paid")
	case EventCreditsOffset:
		out.Wallet, _ = fields["company"].(common.Address)
		out.NftID = bigField(fields, "nftId")
	}
	return out, nil
}

func bigField(fields map[string]interface{}, name string) *big.Int {
	if v, ok := fields[name].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}
