package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Method and event names on the carbon manager contract.
const (
	MethodBuyCredits           = "buyCredits"
	MethodOffsetAgainstProject = "offsetAgainstProject"
	MethodProjectComplete      = "projectComplete"
	MethodWithdraw             = "withdraw"
	MethodPricePerCredit       = "pricePerCredit"

	EventCreditsPurchased = "CreditsPurchased"
	EventCreditsOffset    = "CreditsOffset"
)

const managerABIJSON = `[
  {"type":"function","name":"buyCredits","stateMutability":"payable",
   "inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"offsetAgainstProject","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256"},{"name":"sourceCompany","type":"address"},
             {"name":"sinkCompany","type":"address"},{"name":"fromProject","type":"string"}],"outputs":[]},
  {"type":"function","name":"projectComplete","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256"},{"name":"projectName","type":"string"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"pricePerCredit","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"CreditsPurchased","anonymous":false,
   "inputs":[{"name":"buyer","type":"address","indexed":true},
             {"name":"amount","type":"uint256","indexed":false},
             {"name":"paid","type":"uint256","indexed":false}]},
  {"type":"event","name":"CreditsOffset","anonymous":false,
   "inputs":[{"name":"company","type":"address","indexed":true},
             {"name":"amount","type":"uint256","indexed":false},
             {"name":"nftId","type":"uint256","indexed":false}]}
]`

const tokenABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// ManagerABI returns the parsed carbon manager ABI.
func ManagerABI() abi.ABI {
	return mustParse(managerABIJSON)
}

// TokenABI returns the parsed ERC-20 subset used for balance reads.
func TokenABI() abi.ABI {
	return mustParse(tokenABIJSON)
}

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("chain: invalid ABI: " + err.Error())
	}
	return parsed
}
