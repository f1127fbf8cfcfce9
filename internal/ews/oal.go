package ews

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ChrisTrenkamp/goxpath"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// OABManifest is the file listing the offline address lists below an OAB URL.
const OABManifest = "oab.xml"

// OAL element names accepted by GetOALDetail.
const (
	OALFull     = "Full"
	OALDiff     = "Diff"
	OALTemplate = "Template"
)

// OAL is one offline address list advertised by the OAB manifest.
type OAL struct {
	ID   string
	DN   string
	Name string
}

// OALDetails describes one downloadable OAL file.
type OALDetails struct {
	Seq              uint32
	Ver              uint32
	Size             uint32
	UncompressedSize uint32
	SHA              string
	Filename         string
}

var oalPath = goxpath.MustParse(`/*[local-name()='OAB']/*[local-name()='OAL']`)

func parseOABManifest(data []byte) ([]*soap.Parameter, error) {
	doc, err := soap.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse oab XML: %w", err)
	}
	if doc.Root().Name() != "OAB" {
		return nil, errors.New("failed to find <OAB> element")
	}
	return doc.Select(oalPath), nil
}

func parseOALList(data []byte) ([]OAL, error) {
	nodes, err := parseOABManifest(data)
	if err != nil {
		return nil, err
	}
	oals := make([]OAL, 0, len(nodes))
	for _, n := range nodes {
		oals = append(oals, OAL{
			ID:   n.Property("id"),
			DN:   n.Property("dn"),
			Name: n.Property("name"),
		})
	}
	return oals, nil
}

// parseOALDetails returns the element files of the OAL with the given id.
// Only the first Full file is reported; Diff and Template files are all
// returned in document order.
func parseOALDetails(data []byte, oalID, element string) ([]OALDetails, error) {
	nodes, err := parseOABManifest(data)
	if err != nil {
		return nil, err
	}

	var details []OALDetails
	for _, n := range nodes {
		if n.Property("id") != oalID {
			continue
		}
		for _, file := range n.ChildrenByName(element) {
			details = append(details, OALDetails{
				Seq:              parseUint32(file.Property("seq")),
				Ver:              parseUint32(file.Property("ver")),
				Size:             parseUint32(file.Property("size")),
				UncompressedSize: parseUint32(file.Property("uncompressedsize")),
				SHA:              file.Property("SHA"),
				Filename:         file.Value(),
			})
			if element == OALFull {
				break
			}
		}
		break
	}
	return details, nil
}

func parseUint32(s string) uint32 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// oabFileURL resolves name against the OAB base URL. A base ending in a
// file name (such as .../oab.xml) resolves relative to its directory.
func oabFileURL(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid OAB URL %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid OAB URL %q: must be absolute", base)
	}
	if !strings.HasSuffix(u.Path, "/") && !strings.Contains(u.Path[strings.LastIndex(u.Path, "/")+1:], ".") {
		u.Path += "/"
	}

	ref, err := url.Parse(name)
	if err != nil {
		return "", fmt.Errorf("invalid OAB file name %q: %w", name, err)
	}
	return u.ResolveReference(ref).String(), nil
}
