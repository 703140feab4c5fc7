package chain

// EndpointList is an ordered set of HTTP(S) JSON-RPC endpoints for one chain.
// Order matters only in that index 0 is preferred for single-endpoint calls
// (ChainID, LatestBlockNumber, GetLogs); SendRawTransaction always fans out
// to every endpoint.
type EndpointList []string

// Primary returns the first endpoint, or "" if the list is empty.
func (l EndpointList) Primary() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}
