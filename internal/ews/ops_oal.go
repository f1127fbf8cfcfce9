package ews

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

var errNoOABURL = errors.New("no offline address book URL configured")

// manifestURL resolves oab.xml below oabURL, or below the configured OAB URL
// when oabURL is empty.
func (c *Connection) manifestURL(oabURL string) (string, error) {
	return c.oabURL(oabURL, OABManifest)
}

func (c *Connection) oabURL(base, name string) (string, error) {
	if base == "" {
		base = c.config.OABURL
	}
	if base == "" {
		return "", errNoOABURL
	}
	return oabFileURL(base, name)
}

// GetOALListStart fetches the OAB manifest and lists its address lists.
// An empty oabURL uses the connection's configured OAB URL.
func (c *Connection) GetOALListStart(ctx context.Context, priority Priority, oabURL string) *Pending[[]OAL] {
	const operation = "GetOALList"

	target, err := c.manifestURL(oabURL)
	if err != nil {
		return failed[[]OAL](operation, err)
	}

	return submitRaw(ctx, c, priority, operation, http.MethodGet, target, func(resp *http.Response, r *[]OAL) error {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		dumpResponse(c.ctx, resp, data)

		oals, err := parseOALList(data)
		if err != nil {
			return err
		}
		tflog.SubsystemTrace(c.ctx, SubsystemCore, "Parsed OAB manifest", map[string]any{
			"operation": operation,
			"count":     len(oals),
		})
		*r = oals
		return nil
	})
}

// GetOALList is the synchronous form of GetOALListStart.
func (c *Connection) GetOALList(ctx context.Context, priority Priority, oabURL string) ([]OAL, error) {
	return c.GetOALListStart(ctx, priority, oabURL).Finish()
}

// GetOALDetailStart fetches the OAB manifest and returns the element files
// (OALFull, OALDiff or OALTemplate) of the address list with id oalID. An
// unknown id yields an empty result.
func (c *Connection) GetOALDetailStart(ctx context.Context, priority Priority, oabURL, oalID, element string) *Pending[[]OALDetails] {
	const operation = "GetOALDetail"

	target, err := c.manifestURL(oabURL)
	if err != nil {
		return failed[[]OALDetails](operation, err)
	}

	return submitRaw(ctx, c, priority, operation, http.MethodGet, target, func(resp *http.Response, r *[]OALDetails) error {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		dumpResponse(c.ctx, resp, data)

		details, err := parseOALDetails(data, oalID, element)
		if err != nil {
			return err
		}
		tflog.SubsystemTrace(c.ctx, SubsystemCore, "Parsed OAL details", map[string]any{
			"operation": operation,
			"oal_id":    oalID,
			"element":   element,
			"count":     len(details),
		})
		*r = details
		return nil
	})
}

// GetOALDetail is the synchronous form of GetOALDetailStart.
func (c *Connection) GetOALDetail(ctx context.Context, priority Priority, oabURL, oalID, element string) ([]OALDetails, error) {
	return c.GetOALDetailStart(ctx, priority, oabURL, oalID, element).Finish()
}

// DownloadOALFileStart streams the OAB file filename to w and reports the
// number of bytes written. progress, when not nil, receives the percentage
// received as data arrives, but only if the server sent a Content-Length.
// Bodies of rejected authentication rounds never reach w.
func (c *Connection) DownloadOALFileStart(ctx context.Context, priority Priority, oabURL, filename string, w io.Writer, progress func(percent int)) *Pending[int64] {
	const operation = "DownloadOALFile"

	target, err := c.oabURL(oabURL, filename)
	if err != nil {
		return failed[int64](operation, err)
	}

	return submitRaw(ctx, c, priority, operation, http.MethodGet, target, func(resp *http.Response, r *int64) error {
		dst := &progressWriter{w: w, total: resp.ContentLength, progress: progress}
		n, err := io.Copy(dst, resp.Body)
		*r = n
		return err
	})
}

// DownloadOALFile is the synchronous form of DownloadOALFileStart.
func (c *Connection) DownloadOALFile(ctx context.Context, priority Priority, oabURL, filename string, w io.Writer, progress func(percent int)) (int64, error) {
	return c.DownloadOALFileStart(ctx, priority, oabURL, filename, w, progress).Finish()
}

type progressWriter struct {
	w        io.Writer
	total    int64
	received int64
	progress func(int)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.received += int64(n)
	if p.progress != nil && p.total > 0 {
		p.progress(int(p.received * 100 / p.total))
	}
	return n, err
}
