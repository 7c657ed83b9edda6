// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// QualifiedName is a (namespace, name) pair used for browse names and
// session attribute keys (spec.md §3, §4.6).
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// Decode reads a QualifiedName.
func (q *QualifiedName) Decode(d *Decoder) error {
	ns, err := d.ReadUint16()
	if err != nil {
		return err
	}
	name, err := d.ReadString()
	if err != nil {
		return err
	}
	q.NamespaceIndex, q.Name = ns, name
	return nil
}

// Encode writes a QualifiedName.
func (q *QualifiedName) Encode(e *Encoder) error {
	e.WriteUint16(q.NamespaceIndex)
	e.WriteString(q.Name)
	return nil
}

func (q *QualifiedName) String() string { return q.Name }

// LocalizedText is a (locale, text) pair. Either field may be absent; the
// encoding mask byte records which are present (Part 6, 5.2.2.14).
type LocalizedText struct {
	Locale string
	Text   string
}

const (
	localizedTextHasLocale = 0x01
	localizedTextHasText   = 0x02
)

// Decode reads a LocalizedText.
func (l *LocalizedText) Decode(d *Decoder) error {
	mask, err := d.ReadByte()
	if err != nil {
		return err
	}
	if mask&localizedTextHasLocale != 0 {
		if l.Locale, err = d.ReadString(); err != nil {
			return err
		}
	}
	if mask&localizedTextHasText != 0 {
		if l.Text, err = d.ReadString(); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes a LocalizedText.
func (l *LocalizedText) Encode(e *Encoder) error {
	var mask byte
	if l.Locale != "" {
		mask |= localizedTextHasLocale
	}
	if l.Text != "" {
		mask |= localizedTextHasText
	}
	e.WriteByte(mask)
	if mask&localizedTextHasLocale != 0 {
		e.WriteString(l.Locale)
	}
	if mask&localizedTextHasText != 0 {
		e.WriteString(l.Text)
	}
	return nil
}

func (l *LocalizedText) String() string { return l.Text }
