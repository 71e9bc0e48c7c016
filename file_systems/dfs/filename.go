package dfs

import (
	"fmt"
	"strings"

	"github.com/dargueta/acornfs"
)

// invalidNameCharacters can't appear in a file name or directory tag.
const invalidNameCharacters = ":\"#*. "

func checkNameCharacter(character byte, context string) error {
	if character < 0x20 || character > 0x7e {
		return acornfs.ErrInvalidFileName.WithMessage(
			fmt.Sprintf("%s contains unprintable character 0x%02x", context, character),
		)
	}
	if strings.IndexByte(invalidNameCharacters, character) >= 0 {
		return acornfs.ErrInvalidFileName.WithMessage(
			fmt.Sprintf("%s can't contain %q", context, character),
		)
	}
	return nil
}

func validateFileName(name string) error {
	if name == "" {
		return acornfs.ErrInvalidFileName.WithMessage("file name is empty")
	}
	if len(name) > MaxFileNameLength {
		return acornfs.ErrInvalidFileName.WithMessage(
			fmt.Sprintf(
				"%q is %d characters; max is %d", name, len(name), MaxFileNameLength),
		)
	}

	for i := 0; i < len(name); i++ {
		err := checkNameCharacter(name[i], fmt.Sprintf("file name %q", name))
		if err != nil {
			return err
		}
	}
	return nil
}

func validateDirectoryTag(tag byte) error {
	return checkNameCharacter(tag, "directory tag")
}

// ValidateEntry checks the name and directory tag of a catalogue entry. Entries
// decoded from a disk written by another tool may fail this.
func ValidateEntry(file *acornfs.File) error {
	err := validateFileName(file.Name)
	if err != nil {
		return err
	}
	return validateDirectoryTag(file.Directory)
}

// SplitFileName splits a display name such as "LOADER" or "DATA.B" into the
// file name and the directory tag. The tag is [DefaultDirectory] if the name
// has no tag, or if the name ends with a period.
func SplitFileName(displayName string) (string, byte, error) {
	name, tag, hasTag := strings.Cut(displayName, ".")
	directory := byte(DefaultDirectory)

	if hasTag && tag != "" {
		if len(tag) != 1 {
			return "", 0, acornfs.ErrInvalidFileName.WithMessage(
				fmt.Sprintf("directory tag %q must be a single character", tag),
			)
		}
		directory = tag[0]
	}

	err := validateFileName(name)
	if err != nil {
		return "", 0, err
	}
	err = validateDirectoryTag(directory)
	if err != nil {
		return "", 0, err
	}
	return name, directory, nil
}

// JoinFileName is the inverse of [SplitFileName]. Files in the default
// directory are shown without a tag.
func JoinFileName(name string, directory byte) string {
	if directory == DefaultDirectory {
		return name
	}
	return name + "." + string(rune(directory))
}

// DisplayName gives the name of a catalogue entry as shown to users.
func DisplayName(file *acornfs.File) string {
	return JoinFileName(file.Name, file.Directory)
}

// PadFileName converts a file name to its fixed-width on-disk form, padded
// with spaces.
func PadFileName(name string) ([MaxFileNameLength]byte, error) {
	var padded [MaxFileNameLength]byte

	err := validateFileName(name)
	if err != nil {
		return padded, err
	}

	copy(padded[:], name)
	for i := len(name); i < MaxFileNameLength; i++ {
		padded[i] = ' '
	}
	return padded, nil
}

// ValidateDiskTitle checks that a disk title will fit in the catalogue.
func ValidateDiskTitle(title string) error {
	if len(title) > MaxDiskNameLength {
		return acornfs.ErrInvalidDiskTitle.WithMessage(
			fmt.Sprintf(
				"%q is %d characters; max is %d", title, len(title), MaxDiskNameLength),
		)
	}

	for i := 0; i < len(title); i++ {
		if title[i] < 0x20 || title[i] > 0x7e {
			return acornfs.ErrInvalidDiskTitle.WithMessage(
				fmt.Sprintf("title contains unprintable character 0x%02x", title[i]),
			)
		}
	}
	return nil
}

// PadDiskTitle converts a disk title to its on-disk form, padded with nulls.
func PadDiskTitle(title string) ([MaxDiskNameLength]byte, error) {
	var padded [MaxDiskNameLength]byte
	err := ValidateDiskTitle(title)
	if err == nil {
		copy(padded[:], title)
	}
	return padded, err
}
