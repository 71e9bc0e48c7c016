package dfs

import (
	"fmt"

	"github.com/dargueta/acornfs"
)

// Remove deletes a file from the catalogue. Its sectors aren't reclaimed.
func (driver *Driver) Remove(displayName string) error {
	catalogue, err := driver.loadCatalogue()
	if err != nil {
		return err
	}
	directory := catalogue.directory

	index, err := Find(directory, displayName)
	if err != nil {
		return err
	}
	if directory.Files[index].Locked {
		return acornfs.ErrFileLocked.WithMessage(displayName)
	}

	directory.Files = append(directory.Files[:index], directory.Files[index+1:]...)
	err = driver.save(catalogue)
	if err != nil {
		return err
	}

	driver.logger.Info("removed file", "name", displayName)
	return nil
}

// Update changes the addresses or lock state of an existing file.
func (driver *Driver) Update(displayName string, update acornfs.FileUpdate) (*acornfs.File, error) {
	catalogue, err := driver.loadCatalogue()
	if err != nil {
		return nil, err
	}

	index, err := Find(catalogue.directory, displayName)
	if err != nil {
		return nil, err
	}

	file := &catalogue.directory.Files[index]
	if update.LoadAddress != nil {
		file.LoadAddress = *update.LoadAddress
	}
	if update.ExecAddress != nil {
		file.ExecAddress = *update.ExecAddress
	}
	if update.Locked != nil {
		file.Locked = *update.Locked
	}

	err = driver.save(catalogue)
	if err != nil {
		return nil, err
	}

	driver.logger.Info(
		"updated file",
		"name", displayName,
		"load", fmt.Sprintf("%08x", file.LoadAddress),
		"exec", fmt.Sprintf("%08x", file.ExecAddress),
		"locked", file.Locked,
	)
	updated := *file
	return &updated, nil
}

// SetBootOption changes what happens when the disk is booted.
func (driver *Driver) SetBootOption(option acornfs.BootOption) error {
	if option > acornfs.BootExec {
		return acornfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid boot option %d", uint8(option)),
		)
	}

	catalogue, err := driver.loadCatalogue()
	if err != nil {
		return err
	}

	catalogue.directory.BootOption = option
	return driver.save(catalogue)
}

// SetTitle changes the disk's title.
func (driver *Driver) SetTitle(title string) error {
	err := ValidateDiskTitle(title)
	if err != nil {
		return err
	}

	catalogue, err := driver.loadCatalogue()
	if err != nil {
		return err
	}

	catalogue.directory.Name = title
	return driver.save(catalogue)
}
