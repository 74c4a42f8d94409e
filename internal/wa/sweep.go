package wa

import "context"

// ResumeSweep reconciles "the database thinks we're connected" with "the
// process actually has a live session". Runtime state is lost on every
// restart while credentials and record status survive, so for every record
// still marked connected that has a resumable credential on disk, a session
// is re-established. Sequential per connection to bound burst reconnection
// load on the remote service; record row order is the only ordering.
func (m *Manager) ResumeSweep(ctx context.Context) error {
	if m.records == nil {
		return nil
	}

	recs, err := m.records.ListConnected(ctx)
	if err != nil {
		return err
	}

	m.logger.Printf("Resume sweep: %d connection(s) marked connected", len(recs))

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.GetSession(rec.ID) != nil {
			continue
		}
		if !m.HasStoredCredential(rec.ID) {
			m.logger.Printf("Resume sweep: connection %s has no stored credential, skipping", rec.ID)
			continue
		}

		res, err := m.EnsureSession(ctx, rec.ID, rec.CompanyID)
		if err != nil {
			m.logger.Printf("Resume sweep: failed to resume connection %s: %v", rec.ID, err)
			continue
		}
		m.logger.Printf("Resume sweep: connection %s resumed (created=%v, status=%s)", rec.ID, res.Created, res.Status)
	}

	return nil
}
