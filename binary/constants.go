package binary

// Framing tokens for the binary node encoding.
const (
	listEmpty   = 0
	streamEnd   = 2
	dictionary0 = 236
	dictionary7 = 243
	list8       = 248
	list16      = 249
	jidPair     = 250
	hex8        = 251
	binary8     = 252
	binary20    = 253
	binary32    = 254
	nibble8     = 255

	singleByteMax = 256
	packedMax     = 254
)
