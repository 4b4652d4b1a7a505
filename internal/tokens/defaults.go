package tokens

const iconBase = "https://raw.githubusercontent.com/solana-labs/token-list/main/assets/mainnet/"

// Well-known mints
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintRAY  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

var defaultRecords = []Record{
	{
		Symbol:        "SOL",
		Name:          "Solana",
		Mint:          MintSOL,
		Decimals:      9,
		Icon:          iconBase + MintSOL + "/logo.png",
		PriceSourceID: "solana",
		IsNative:      true,
	},
	{
		Symbol:        "USDC",
		Name:          "USD Coin",
		Mint:          MintUSDC,
		Decimals:      6,
		Icon:          iconBase + MintUSDC + "/logo.png",
		PriceSourceID: "usd-coin",
	},
	{
		Symbol:        "USDT",
		Name:          "Tether USD",
		Mint:          MintUSDT,
		Decimals:      6,
		Icon:          iconBase + MintUSDT + "/logo.svg",
		PriceSourceID: "tether",
	},
	{
		Symbol:        "RAY",
		Name:          "Raydium",
		Mint:          MintRAY,
		Decimals:      6,
		Icon:          iconBase + MintRAY + "/logo.png",
		PriceSourceID: "raydium",
	},
}
