package gscodec

import (
	"bytes"
	"hash/fnv"
	"regexp"
	"strconv"
)

// Raw structure scan. The page reader gives us pages, text and fonts;
// image XObjects and the metadata stream are cheaper to locate with a
// direct pass over the object table than through a full object-model
// parse.

var (
	objHeaderRe = regexp.MustCompile(`(\d+)\s+0\s+obj\b`)
	widthRe     = regexp.MustCompile(`/Width\s+(\d+)`)
	heightRe    = regexp.MustCompile(`/Height\s+(\d+)`)
)

type imageObject struct {
	objectNumber int
	width        int
	height       int
	format       string
	sizeBytes    int64
	digest       uint64
}

type scanResult struct {
	images          []imageObject
	metadataBytes   int64
	duplicateImages int
	fontFiles       int
}

// scanObjects walks every `N 0 obj ... endobj` span once and collects
// image XObjects, the XMP metadata stream size, and embedded font file
// count.
func scanObjects(data []byte) scanResult {
	var result scanResult
	digests := make(map[uint64]int)

	locs := objHeaderRe.FindAllSubmatchIndex(data, -1)
	for i, loc := range locs {
		end := len(data)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := data[loc[1]:end]
		if idx := bytes.Index(body, []byte("endobj")); idx >= 0 {
			body = body[:idx]
		}

		objectNumber, _ := strconv.Atoi(string(data[loc[2]:loc[3]]))
		stream := streamBytes(body)

		if bytes.Contains(body, []byte("/FontFile")) {
			result.fontFiles++
			continue
		}

		if bytes.Contains(body, []byte("/Metadata")) && bytes.Contains(body, []byte("/Type")) {
			result.metadataBytes += int64(len(stream))
			continue
		}

		if !isImageObject(body) {
			continue
		}

		img := imageObject{
			objectNumber: objectNumber,
			width:        matchInt(widthRe, body),
			height:       matchInt(heightRe, body),
			format:       imageFormat(body),
			sizeBytes:    int64(len(stream)),
		}
		if len(stream) > 0 {
			h := fnv.New64a()
			h.Write(stream)
			img.digest = h.Sum64()
			digests[img.digest]++
			if digests[img.digest] > 1 {
				result.duplicateImages++
			}
		}
		result.images = append(result.images, img)
	}

	return result
}

func isImageObject(body []byte) bool {
	return bytes.Contains(body, []byte("/Subtype")) &&
		bytes.Contains(body, []byte("/Image")) &&
		bytes.Contains(body, []byte("stream"))
}

// imageFormat maps the stream filter to a source format label.
func imageFormat(body []byte) string {
	switch {
	case bytes.Contains(body, []byte("/DCTDecode")):
		return "jpeg"
	case bytes.Contains(body, []byte("/JPXDecode")):
		return "jpx"
	case bytes.Contains(body, []byte("/JBIG2Decode")):
		return "jbig2"
	case bytes.Contains(body, []byte("/CCITTFaxDecode")):
		return "ccitt"
	case bytes.Contains(body, []byte("/FlateDecode")):
		return "png"
	default:
		return "raw"
	}
}

func streamBytes(body []byte) []byte {
	start := bytes.Index(body, []byte("stream"))
	if start < 0 {
		return nil
	}
	start += len("stream")
	// The keyword is followed by CRLF or LF
	if start < len(body) && body[start] == '\r' {
		start++
	}
	if start < len(body) && body[start] == '\n' {
		start++
	}
	end := bytes.Index(body[start:], []byte("endstream"))
	if end < 0 {
		return body[start:]
	}
	return body[start : start+end]
}

func matchInt(re *regexp.Regexp, body []byte) int {
	m := re.FindSubmatch(body)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(string(m[1]))
	return n
}
