package tokens

import "strings"

// Public gateways for content-addressed URI schemes, tried in order.
var ipfsGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
}

const arweaveGateway = "https://arweave.net/"

// resolveTokenURI rewrites a token URI into one or more fetchable HTTPS
// URLs. ipfs:// URIs expand to every configured gateway so a dead
// gateway does not lose the document. Unknown schemes resolve to
// nothing.
func resolveTokenURI(uri string) []string {
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		path := strings.TrimPrefix(uri, "ipfs://")
		path = strings.TrimPrefix(path, "ipfs/")
		urls := make([]string, len(ipfsGateways))
		for i, gw := range ipfsGateways {
			urls[i] = gw + path
		}
		return urls
	case strings.HasPrefix(uri, "ar://"):
		return []string{arweaveGateway + strings.TrimPrefix(uri, "ar://")}
	case strings.HasPrefix(uri, "https://"), strings.HasPrefix(uri, "http://"):
		return []string{uri}
	default:
		return nil
	}
}

// imageFields is the priority order for extracting an image URL from an
// NFT metadata document. Collections disagree on the field name.
var imageFields = []string{
	"image",
	"image_url",
	"imageUrl",
	"animation_url",
	"animationUrl",
}

// extractImageURL pulls the best image reference out of a metadata
// document, resolving content-addressed schemes to the first gateway.
func extractImageURL(doc map[string]any) string {
	for _, field := range imageFields {
		if s, ok := doc[field].(string); ok && s != "" {
			if resolved := resolveTokenURI(s); len(resolved) > 0 {
				return resolved[0]
			}
			return s
		}
	}
	return ""
}
